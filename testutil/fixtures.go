package testutil

import (
	"sort"
	"strings"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/objstore"
)

/*
	Files describes a tree to build: slash-separated paths mapped to file content.

	Parent directories are implied.  A path ending in "/" is an empty directory.
	Content beginning with "#!" is stored as an executable, and content
	beginning with "->" as a symlink to the rest of the string.
*/
type Files map[string]string

/*
	Write the tree described by files into the store, returning the root tree's ID.
	A transaction must be open.  Failures are reported through `So`.
*/
func WriteFiles(store objstore.Store, files Files) api.ObjectID {
	root := &dirNode{children: map[string]*dirNode{}}
	for p, content := range files {
		segs := strings.Split(strings.TrimSuffix(p, "/"), "/")
		node := root
		for _, seg := range segs[:len(segs)-1] {
			node = node.dir(seg)
		}
		last := segs[len(segs)-1]
		if strings.HasSuffix(p, "/") {
			node.dir(last)
			continue
		}
		node.files = append(node.files, fileLeaf{last, content})
	}
	return root.write(store)
}

type dirNode struct {
	children map[string]*dirNode
	files    []fileLeaf
}

type fileLeaf struct {
	name    string
	content string
}

func (d *dirNode) dir(name string) *dirNode {
	if child, ok := d.children[name]; ok {
		return child
	}
	child := &dirNode{children: map[string]*dirNode{}}
	d.children[name] = child
	return child
}

func (d *dirNode) write(store objstore.Store) api.ObjectID {
	var entries []objstore.TreeEntry
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, objstore.TreeEntry{Name: name, Kind: objstore.EntryDir, ID: d.children[name].write(store)})
	}
	for _, f := range d.files {
		kind, data := objstore.EntryFile, f.content
		switch {
		case strings.HasPrefix(data, "#!"):
			kind = objstore.EntryExecutable
		case strings.HasPrefix(data, "->"):
			kind, data = objstore.EntrySymlink, data[2:]
		}
		id, err := store.WriteBlob([]byte(data))
		So(err, ShouldBeNil)
		entries = append(entries, objstore.TreeEntry{Name: f.name, Kind: kind, ID: id})
	}
	id, err := store.WriteTree(entries)
	So(err, ShouldBeNil)
	return id
}

/*
	Write a commit of the given files on top of parent (which may be empty).
	The timestamp is derived from the subject so that fixtures are reproducible.
	A transaction must be open.
*/
func WriteCommit(store objstore.Store, parent api.CommitID, subject string, files Files, md api.Metadata) api.CommitID {
	id, err := store.WriteCommit(objstore.Commit{
		Parent:    parent,
		Tree:      WriteFiles(store, files),
		Subject:   subject,
		Timestamp: time.Unix(int64(len(subject))*1000, 0),
		Metadata:  md,
	})
	So(err, ShouldBeNil)
	return id
}

/*
	Run fn inside a transaction on the store, committing afterwards.
*/
func InTransaction(store objstore.Store, fn func()) {
	So(store.PrepareTransaction(), ShouldBeNil)
	fn()
	_, err := store.CommitTransaction()
	So(err, ShouldBeNil)
}

/*
	Snapshot of what is externally visible in a store: every ref, and the
	presence of each listed object.  Compare two with ShouldResemble.
*/
type Snapshot struct {
	Refs    []objstore.Ref
	Objects map[api.ObjectID]bool
}

func TakeSnapshot(store objstore.Reader, ids ...api.ObjectID) Snapshot {
	refs, err := store.ListRefs("")
	So(err, ShouldBeNil)
	snap := Snapshot{Refs: refs, Objects: map[api.ObjectID]bool{}}
	for _, id := range ids {
		has, err := store.HasObject(id)
		So(err, ShouldBeNil)
		snap.Objects[id] = has
	}
	return snap
}
