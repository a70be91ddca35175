package walker

import (
	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/objstore"
)

/*
	Range is the run of commits between two revisions, inclusive,
	ordered oldest first.

	Only IDs are held; commits are read as an Iterator reaches them.
	Iterators are independent, so a Range can be walked any number of times
	and abandoned partway through.
*/
type Range struct {
	store objstore.Reader
	ids   []api.CommitID // oldest first
}

/*
	Resolve the range of history from begin to end, inclusive of both.

	begin must be an ancestor of end (or the same commit).  An empty begin
	means the range extends back to the root commit.

	May return errors of category:

	  - `pkgtree.ErrRefNotFound` -- if either revision doesn't resolve
	  - `pkgtree.ErrDisjointHistory` -- if begin is not an ancestor of end
	  - `pkgtree.ErrObjectNotFound` -- if a commit in the chain is missing
	  - `pkgtree.ErrStoreCorrupt` -- if the chain loops or a commit is undecodable
*/
func ResolveRange(store objstore.Reader, begin, end string) (_ *Range, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	endID, err := Resolve(store, end)
	if err != nil {
		return nil, err
	}
	var beginID api.CommitID
	if begin != "" {
		if beginID, err = Resolve(store, begin); err != nil {
			return nil, err
		}
	}

	var newestFirst []api.CommitID
	it := NewAncestry(store, endID)
	for it.Next() {
		id := it.Commit().ID
		newestFirst = append(newestFirst, id)
		if id == beginID {
			break
		}
	}
	if it.Err() != nil {
		return nil, it.Err()
	}
	if beginID != "" && newestFirst[len(newestFirst)-1] != beginID {
		return nil, ErrorDetailed(pkgtree.ErrDisjointHistory,
			"commit "+beginID.Short()+" is not an ancestor of "+endID.Short(),
			map[string]string{
				"begin":   begin,
				"end":     end,
				"beginID": beginID.String(),
				"endID":   endID.String(),
			})
	}

	ids := make([]api.CommitID, len(newestFirst))
	for i, id := range newestFirst {
		ids[len(ids)-1-i] = id
	}
	return &Range{store: store, ids: ids}, nil
}

func (r *Range) Len() int { return len(r.ids) }

// IDs returns a copy of the range's commit IDs, oldest first.
func (r *Range) IDs() []api.CommitID {
	ids := make([]api.CommitID, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Iterator returns a fresh cursor positioned before the oldest commit.
func (r *Range) Iterator() *RangeIterator {
	return &RangeIterator{r: r, pos: -1}
}

type RangeIterator struct {
	r       *Range
	pos     int
	current objstore.Commit
	err     error
}

func (it *RangeIterator) Next() bool {
	if it.err != nil || it.pos+1 >= len(it.r.ids) {
		return false
	}
	it.pos++
	it.current, it.err = it.r.store.ReadCommit(it.r.ids[it.pos])
	return it.err == nil
}

func (it *RangeIterator) Commit() objstore.Commit { return it.current }

func (it *RangeIterator) Err() error { return it.err }
