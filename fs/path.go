/*
	Package fs holds the path value types shared across pkgtree.

	RelPath names something inside a tree snapshot, relative to its root;
	AbsolutePath names something on the host, such as a repository.
	They are deliberately not interchangeable.  Both are always clean,
	and their zero values are the root and "/" respectively.
*/
package fs

import (
	"path"
	"strings"
)

type RelPath struct {
	path      string // clean, no leading "./"; empty for the root.
	lastSplit int
}

func MustRelPath(p string) RelPath {
	p = path.Clean(p)
	if p[0] == '/' {
		panic("relative path required, got " + p)
	}
	if p == "." {
		return RelPath{}
	}
	return RelPath{p, strings.LastIndexByte(p, '/')}
}

// String renders the path with a leading "./", or "." for the root.
func (p RelPath) String() string {
	switch {
	case p.path == "":
		return "."
	case p.path == ".." || strings.HasPrefix(p.path, "../"):
		return p.path
	default:
		return "./" + p.path
	}
}

// Slash renders the path the way tree reports show it: "/a/b", or "/" for the root.
func (p RelPath) Slash() string {
	return "/" + p.path
}

// Bare is the clean path with no prefix at all; empty for the root.
func (p RelPath) Bare() string {
	return p.path
}

func (p RelPath) IsRoot() bool { return p.path == "" }

func (p RelPath) Dir() RelPath {
	switch {
	case p.path == "":
		return p
	case p.lastSplit == -1:
		return RelPath{}
	default:
		p2 := p.path[:p.lastSplit]
		return RelPath{p2, strings.LastIndexByte(p2, '/')}
	}
}

func (p RelPath) Last() string {
	switch {
	case p.path == "":
		return "."
	case p.lastSplit == -1:
		return p.path
	default:
		return p.path[p.lastSplit+1:]
	}
}

func (p RelPath) Join(p2 RelPath) RelPath {
	switch {
	case p2.path == "":
		return p
	case p.path == "":
		return p2
	default:
		return RelPath{p.path + "/" + p2.path, len(p.path) + p2.lastSplit + 1}
	}
}

/*
	Child appends a single tree entry name.  The name is taken verbatim;
	it must not contain '/' and must not be "." or "..".
*/
func (p RelPath) Child(name string) RelPath {
	if p.path == "" {
		return RelPath{name, -1}
	}
	return RelPath{p.path + "/" + name, len(p.path)}
}

type AbsolutePath struct {
	path      string // clean; empty for "/".
	lastSplit int
}

func MustAbsolutePath(p string) AbsolutePath {
	p = path.Clean(p)
	if p[0] != '/' {
		panic("absolute path required, got " + p)
	}
	if p == "/" {
		return AbsolutePath{}
	}
	return AbsolutePath{p, strings.LastIndexByte(p, '/')}
}

func (p AbsolutePath) String() string {
	if p.path == "" {
		return "/"
	}
	return p.path
}

func (p AbsolutePath) Dir() AbsolutePath {
	switch {
	case p.path == "":
		return p
	case p.lastSplit == 0:
		return AbsolutePath{}
	default:
		p2 := p.path[:p.lastSplit]
		return AbsolutePath{p2, strings.LastIndexByte(p2, '/')}
	}
}

func (p AbsolutePath) Last() string {
	if p.path == "" {
		return "/"
	}
	return p.path[p.lastSplit+1:]
}

func (p AbsolutePath) Join(p2 RelPath) AbsolutePath {
	if p2.path == "" {
		return p
	}
	return AbsolutePath{p.path + "/" + p2.path, len(p.path) + p2.lastSplit + 1}
}
