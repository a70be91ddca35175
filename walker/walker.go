/*
	Package walker resolves revisions and walks the linear parent chains
	of commits in a store.

	All functions here only read; they may run concurrently with each other
	on the same store, though not with a transaction that moves the refs
	being resolved.
*/
package walker

import (
	"fmt"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/objstore"
)

/*
	Resolve a revision string to a commit ID.

	A revision is either the full hex ID of a commit present in the store,
	or the name of a ref.

	May return errors of category:

	  - `pkgtree.ErrRefNotFound` -- if the revision names neither
	  - `pkgtree.ErrIoFailure` -- if the store could not be read
*/
func Resolve(store objstore.Reader, rev string) (api.CommitID, error) {
	if looksLikeID(rev) {
		obj, err := store.ReadObject(api.ObjectID(rev))
		switch {
		case err == nil && obj.Kind == objstore.KindCommit:
			return api.CommitID(rev), nil
		case err != nil && Category(err) != pkgtree.ErrObjectNotFound:
			return "", err
		}
	}
	if rev != "" {
		id, found, err := store.ResolveRef(rev)
		if err != nil {
			return "", err
		}
		if found {
			return id, nil
		}
	}
	return "", ErrorDetailed(pkgtree.ErrRefNotFound,
		fmt.Sprintf("revision %q is neither a commit nor a ref", rev),
		map[string]string{"rev": rev})
}

func looksLikeID(s string) bool {
	if len(s) != 40 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

/*
	Ancestry iterates a commit and its ancestors, newest first,
	reading each commit only when Next asks for it.

	Use it like a bufio.Scanner:

		it := walker.NewAncestry(store, head)
		for it.Next() {
			commit := it.Commit()
		}
		if err := it.Err(); err != nil { ... }
*/
type Ancestry struct {
	store   objstore.Reader
	next    api.CommitID
	current objstore.Commit
	seen    map[api.CommitID]struct{}
	err     error
}

func NewAncestry(store objstore.Reader, start api.CommitID) *Ancestry {
	return &Ancestry{
		store: store,
		next:  start,
		seen:  map[api.CommitID]struct{}{},
	}
}

/*
	Advance to the next commit.  Returns false after the root commit,
	or on error (check Err).

	Errors are of category `pkgtree.ErrObjectNotFound` if a parent is missing,
	`pkgtree.ErrStoreCorrupt` if a commit is revisited or undecodable.
*/
func (a *Ancestry) Next() bool {
	if a.err != nil || a.next == "" {
		return false
	}
	id := a.next
	if _, dup := a.seen[id]; dup {
		a.err = ErrorDetailed(pkgtree.ErrStoreCorrupt,
			"commit "+id.Short()+" is its own ancestor",
			map[string]string{"commit": id.String()})
		return false
	}
	a.seen[id] = struct{}{}
	commit, err := a.store.ReadCommit(id)
	if err != nil {
		a.err = err
		return false
	}
	a.current = commit
	a.next = commit.Parent
	return true
}

// Commit returns the commit Next just advanced to.
func (a *Ancestry) Commit() objstore.Commit { return a.current }

func (a *Ancestry) Err() error { return a.err }
