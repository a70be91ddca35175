/*
	Package pkgcache is the package cache: a repository beside the system
	repository in which each imported package's content is a commit, named
	by a cache branch derived from the package's identity.
*/
package pkgcache

import (
	"sort"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/config"
	"github.com/polydawn/pkgtree/fs"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore"
	"github.com/polydawn/pkgtree/objstore/gitstore"
)

// Path returns where the package cache of the system repository at repo lives.
func Path(repo fs.AbsolutePath) fs.AbsolutePath {
	return repo.Join(fs.MustRelPath(config.PkgcacheSubpath))
}

/*
	Open the package cache repository at path, creating it if it doesn't
	exist yet.  Path(repo) is the usual place; `config.GetPkgcachePath`
	honors the host's override.

	Errors are of category `pkgtree.ErrStoreUnavailable`.
*/
func Open(path fs.AbsolutePath) (*gitstore.Store, error) {
	return gitstore.Open(path, true)
}

// Entry is one cached package.
type Entry struct {
	Identity api.PackageIdentity `refmt:"identity"`
	Branch   string              `refmt:"branch"`
	Commit   api.CommitID        `refmt:"commit"`
}

// Index looks packages up in a cache repository by identity.
type Index struct {
	store objstore.Reader
}

func NewIndex(store objstore.Reader) *Index {
	return &Index{store}
}

/*
	Lookup returns the commit holding a package's content, if cached.

	Errors are of category `pkgtree.ErrUsage` if id is invalid,
	or as for resolving refs in the store.
*/
func (x *Index) Lookup(id api.PackageIdentity) (_ api.CommitID, found bool, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	branch, err := nevra.EncodeBranch(id)
	if err != nil {
		return "", false, err
	}
	return x.store.ResolveRef(branch)
}

/*
	List every cached package, sorted by identity.

	A ref under the cache prefix that doesn't decode fails the whole
	listing with `pkgtree.ErrMalformedBranch`.
*/
func (x *Index) List() (_ []Entry, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	refs, err := x.store.ListRefs(nevra.BranchPrefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(refs))
	for _, ref := range refs {
		id, err := nevra.DecodeBranch(ref.Name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{id, ref.Name, ref.Commit})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identity.Less(entries[j].Identity)
	})
	return entries, nil
}
