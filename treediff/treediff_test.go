package treediff

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/layer"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore/gitstore"
	"github.com/polydawn/pkgtree/testutil"
)

func TestDiff(t *testing.T) {
	Convey("Given a store", t, func() {
		store := gitstore.NewMemory()
		trees := func(before, after testutil.Files) (oldID, newID api.ObjectID) {
			testutil.InTransaction(store, func() {
				oldID = testutil.WriteFiles(store, before)
				newID = testutil.WriteFiles(store, after)
			})
			return
		}
		blob := func(content string) (id api.ObjectID) {
			testutil.InTransaction(store, func() {
				var err error
				id, err = store.WriteBlob([]byte(content))
				So(err, ShouldBeNil)
			})
			return
		}

		Convey("{a,b,c} to {a,c,d} is exactly [Removed b, Added d]", func() {
			oldID, newID := trees(
				testutil.Files{"a": "1", "b": "2", "c": "3"},
				testutil.Files{"a": "1", "c": "3", "d": "4"},
			)
			entries, err := Diff(store, oldID, newID)
			So(err, ShouldBeNil)
			So(entries, ShouldResemble, []api.DiffEntry{
				{Path: "b", Kind: api.DiffRemoved, OldRef: blob("2")},
				{Path: "d", Kind: api.DiffAdded, NewRef: blob("4")},
			})

			Convey("and says so identically every time", func() {
				again, err := Diff(store, oldID, newID)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, entries)
				So(Render(again), ShouldEqual, Render(entries))
			})
		})

		Convey("identical trees have no diff", func() {
			oldID, newID := trees(testutil.Files{"a/b": "1"}, testutil.Files{"a/b": "1"})
			entries, err := Diff(store, oldID, newID)
			So(err, ShouldBeNil)
			So(entries, ShouldBeEmpty)
			So(Render(entries), ShouldEqual, "")
		})

		Convey("nested changes are reported at their own paths", func() {
			oldID, newID := trees(
				testutil.Files{"dir/x": "1", "dir/y": "2", "gone/z": "3", "g/h": "1", "same/s": "s"},
				testutil.Files{"dir/x": "1", "dir/y": "two", "new/z": "3", "g": "1", "same/s": "s"},
			)
			entries, err := Diff(store, oldID, newID)
			So(err, ShouldBeNil)
			var paths []string
			var kinds []api.DiffKind
			for _, e := range entries {
				paths = append(paths, e.Path)
				kinds = append(kinds, e.Kind)
			}
			So(paths, ShouldResemble, []string{"dir/y", "g", "gone", "new"})
			So(kinds, ShouldResemble, []api.DiffKind{api.DiffModified, api.DiffModified, api.DiffRemoved, api.DiffAdded})
			So(entries[0].OldRef, ShouldEqual, blob("2"))
			So(entries[0].NewRef, ShouldEqual, blob("two"))
		})

		Convey("output is in full path order, not walk order", func() {
			oldID, newID := trees(
				testutil.Files{"a/x": "1"},
				testutil.Files{"a/x": "2", "a-b": "3"},
			)
			entries, err := Diff(store, oldID, newID)
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].Path, ShouldEqual, "a-b")
			So(entries[1].Path, ShouldEqual, "a/x")
		})

		Convey("the empty tree ID diffs as an empty tree", func() {
			_, newID := trees(testutil.Files{}, testutil.Files{"a": "1", "d/e": "2"})
			entries, err := Diff(store, "", newID)
			So(err, ShouldBeNil)
			So(Render(entries), ShouldEqual, "Added:\n  /a\n  /d\n")
		})

		Convey("a missing tree is an error", func() {
			_, err := Diff(store, "0123456789012345678901234567890123456789", "")
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrObjectNotFound)
		})

		Convey("commits diff by revision", func() {
			testutil.InTransaction(store, func() {
				a := testutil.WriteCommit(store, "", "a", testutil.Files{"etc/motd": "hi"}, nil)
				b := testutil.WriteCommit(store, a, "b", testutil.Files{"etc/motd": "hello"}, nil)
				So(store.SetRef("old", a), ShouldBeNil)
				So(store.SetRef("new", b), ShouldBeNil)
			})
			entries, err := DiffCommits(store, "old", "new")
			So(err, ShouldBeNil)
			So(Render(entries), ShouldEqual, "Modified:\n  /etc/motd\n")

			_, err = DiffCommits(store, "old", "nope")
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrRefNotFound)
		})
	})
}

func TestRender(t *testing.T) {
	Convey("Render groups by kind in a fixed order", t, func() {
		So(Render([]api.DiffEntry{
			{Path: "usr/bin/vim", Kind: api.DiffModified},
			{Path: "etc/zz", Kind: api.DiffAdded},
			{Path: "boot", Kind: api.DiffRemoved},
			{Path: "etc/aa", Kind: api.DiffAdded},
		}), ShouldEqual, ""+
			"Added:\n"+
			"  /etc/aa\n"+
			"  /etc/zz\n"+
			"Removed:\n"+
			"  /boot\n"+
			"Modified:\n"+
			"  /usr/bin/vim\n")
	})
}

func TestDiffPackages(t *testing.T) {
	var (
		vim1    = nevra.MustParse("vim-8.2.2637-1.fc34.x86_64")
		vim2    = nevra.MustParse("vim-2:8.2.2787-1.fc34.x86_64")
		htop    = nevra.MustParse("htop-3.0.5-4.fc34.x86_64")
		nano    = nevra.MustParse("nano-5.6.1-1.fc34.x86_64")
		kernelA = nevra.MustParse("kernel-5.11.12-300.fc34.x86_64")
		kernelB = nevra.MustParse("kernel-5.11.15-300.fc34.x86_64")
		kernelC = nevra.MustParse("kernel-5.11.17-300.fc34.x86_64")
		glibc32 = nevra.MustParse("glibc-2.33-5.fc34.i686")
		glibc64 = nevra.MustParse("glibc-2.33-5.fc34.x86_64")
	)

	Convey("Package diffs", t, func() {
		Convey("pair up builds of the same package", func() {
			changes := DiffPackages(
				[]api.PackageIdentity{vim1, nano, glibc64},
				[]api.PackageIdentity{glibc64, htop, vim2},
			)
			So(changes, ShouldResemble, []api.PackageChange{
				{Kind: api.DiffAdded, New: &htop},
				{Kind: api.DiffRemoved, Old: &nano},
				{Kind: api.DiffModified, Old: &vim1, New: &vim2},
			})
			So(RenderPackages(changes), ShouldEqual, ""+
				"Added:\n"+
				"  htop-3.0.5-4.fc34.x86_64\n"+
				"Removed:\n"+
				"  nano-5.6.1-1.fc34.x86_64\n"+
				"Modified:\n"+
				"  vim-8.2.2637-1.fc34.x86_64 -> 2:8.2.2787-1.fc34\n")
		})

		Convey("keep arches apart", func() {
			changes := DiffPackages([]api.PackageIdentity{glibc64}, []api.PackageIdentity{glibc64, glibc32})
			So(changes, ShouldResemble, []api.PackageChange{{Kind: api.DiffAdded, New: &glibc32}})
		})

		Convey("report multi-build slots build by build", func() {
			changes := DiffPackages(
				[]api.PackageIdentity{kernelA, kernelB},
				[]api.PackageIdentity{kernelB, kernelC},
			)
			So(changes, ShouldResemble, []api.PackageChange{
				{Kind: api.DiffModified, Old: &kernelA, New: &kernelC},
			})
			changes = DiffPackages(
				[]api.PackageIdentity{kernelA},
				[]api.PackageIdentity{kernelB, kernelC},
			)
			So(changes, ShouldResemble, []api.PackageChange{
				{Kind: api.DiffRemoved, Old: &kernelA},
				{Kind: api.DiffAdded, New: &kernelB},
				{Kind: api.DiffAdded, New: &kernelC},
			})
		})

		Convey("are empty for equal lists", func() {
			So(DiffPackages([]api.PackageIdentity{vim1, htop}, []api.PackageIdentity{htop, vim1}), ShouldBeEmpty)
		})
	})

	Convey("Commit package diffs read the recorded package lists", t, func() {
		store := gitstore.NewMemory()
		testutil.InTransaction(store, func() {
			mdA, err := layer.AnnotatePackageList(nil, []api.PackageIdentity{vim1, nano})
			So(err, ShouldBeNil)
			mdB, err := layer.AnnotatePackageList(nil, []api.PackageIdentity{vim2, nano})
			So(err, ShouldBeNil)
			a := testutil.WriteCommit(store, "", "a", testutil.Files{}, mdA)
			b := testutil.WriteCommit(store, a, "b", testutil.Files{}, mdB)
			bare := testutil.WriteCommit(store, b, "bare", testutil.Files{}, nil)
			So(store.SetRef("a", a), ShouldBeNil)
			So(store.SetRef("b", b), ShouldBeNil)
			So(store.SetRef("bare", bare), ShouldBeNil)
		})

		changes, err := DiffCommitPackages(store, "a", "b")
		So(err, ShouldBeNil)
		So(changes, ShouldResemble, []api.PackageChange{{Kind: api.DiffModified, Old: &vim1, New: &vim2}})

		_, err = DiffCommitPackages(store, "b", "bare")
		So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrUsage)
	})
}
