package walker

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/objstore/gitstore"
	"github.com/polydawn/pkgtree/testutil"
)

func TestResolveRange(t *testing.T) {
	Convey("Given a chain A->B->C->D and an unrelated chain X->Y", t, func() {
		store := gitstore.NewMemory()
		var a, b, c, d, x, y api.CommitID
		testutil.InTransaction(store, func() {
			a = testutil.WriteCommit(store, "", "A", testutil.Files{"f": "a"}, nil)
			b = testutil.WriteCommit(store, a, "B", testutil.Files{"f": "b"}, nil)
			c = testutil.WriteCommit(store, b, "C", testutil.Files{"f": "c"}, nil)
			d = testutil.WriteCommit(store, c, "D", testutil.Files{"f": "d"}, nil)
			x = testutil.WriteCommit(store, "", "X", testutil.Files{"g": "x"}, nil)
			y = testutil.WriteCommit(store, x, "Y", testutil.Files{"g": "y"}, nil)
			for name, id := range map[string]api.CommitID{"A": a, "B": b, "C": c, "D": d, "Y": y} {
				So(store.SetRef(name, id), ShouldBeNil)
			}
		})

		Convey("A..D is the whole chain, oldest first", func() {
			r, err := ResolveRange(store, "A", "D")
			So(err, ShouldBeNil)
			So(r.IDs(), ShouldResemble, []api.CommitID{a, b, c, d})
		})

		Convey("D..D is just D", func() {
			r, err := ResolveRange(store, "D", "D")
			So(err, ShouldBeNil)
			So(r.IDs(), ShouldResemble, []api.CommitID{d})
		})

		Convey("full hashes work as revisions too", func() {
			r, err := ResolveRange(store, string(b), string(c))
			So(err, ShouldBeNil)
			So(r.IDs(), ShouldResemble, []api.CommitID{b, c})
		})

		Convey("an empty begin walks to the root", func() {
			r, err := ResolveRange(store, "", "C")
			So(err, ShouldBeNil)
			So(r.IDs(), ShouldResemble, []api.CommitID{a, b, c})
		})

		Convey("unrelated chains are disjoint", func() {
			_, err := ResolveRange(store, "A", "Y")
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrDisjointHistory)
		})

		Convey("a descendant as begin is disjoint too", func() {
			_, err := ResolveRange(store, "D", "A")
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrDisjointHistory)
		})

		Convey("unknown revisions are not found", func() {
			_, err := ResolveRange(store, "A", "nope")
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrRefNotFound)
			_, err = ResolveRange(store, "0123456789012345678901234567890123456789", "D")
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrRefNotFound)
		})

		Convey("ranges iterate lazily and restartably", func() {
			r, err := ResolveRange(store, "A", "D")
			So(err, ShouldBeNil)

			it := r.Iterator()
			So(it.Next(), ShouldBeTrue)
			So(it.Commit().Subject, ShouldEqual, "A")
			So(it.Next(), ShouldBeTrue)
			So(it.Commit().Subject, ShouldEqual, "B")
			// abandon it here

			var subjects []string
			for it2 := r.Iterator(); it2.Next(); {
				subjects = append(subjects, it2.Commit().Subject)
			}
			So(subjects, ShouldResemble, []string{"A", "B", "C", "D"})
			So(r.Len(), ShouldEqual, 4)
		})
	})
}

func TestAncestry(t *testing.T) {
	Convey("Ancestry walks newest first and stops at the root", t, func() {
		store := gitstore.NewMemory()
		var a, b api.CommitID
		testutil.InTransaction(store, func() {
			a = testutil.WriteCommit(store, "", "A", testutil.Files{}, nil)
			b = testutil.WriteCommit(store, a, "B", testutil.Files{}, nil)
		})
		it := NewAncestry(store, b)
		So(it.Next(), ShouldBeTrue)
		So(it.Commit().ID, ShouldEqual, b)
		So(it.Next(), ShouldBeTrue)
		So(it.Commit().ID, ShouldEqual, a)
		So(it.Next(), ShouldBeFalse)
		So(it.Err(), ShouldBeNil)

		Convey("and reports missing commits", func() {
			it := NewAncestry(store, "0123456789012345678901234567890123456789")
			So(it.Next(), ShouldBeFalse)
			So(it.Err(), errcat.ErrorShouldHaveCategory, pkgtree.ErrObjectNotFound)
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Resolve refuses hashes of non-commits", t, func() {
		store := gitstore.NewMemory()
		var blob api.ObjectID
		testutil.InTransaction(store, func() {
			var err error
			blob, err = store.WriteBlob([]byte("x"))
			So(err, ShouldBeNil)
		})
		_, err := Resolve(store, string(blob))
		So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrRefNotFound)
		_, err = Resolve(store, "")
		So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrRefNotFound)
	})
}
