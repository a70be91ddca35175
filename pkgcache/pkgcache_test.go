package pkgcache

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/fs"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore/gitstore"
	"github.com/polydawn/pkgtree/replicate"
	"github.com/polydawn/pkgtree/testutil"
	"github.com/polydawn/pkgtree/txn"
)

func TestIndex(t *testing.T) {
	Convey("Given a cache holding two imported packages", t, func() {
		src := gitstore.NewMemory()
		vim := nevra.MustParse("vim-enhanced-2:8.2.2637-1.fc34.x86_64")
		htop := nevra.MustParse("htop-3.0.5-4.fc34.x86_64")
		var vimCommit, htopCommit api.CommitID
		testutil.InTransaction(src, func() {
			vimCommit = testutil.WriteCommit(src, "", "vim", testutil.Files{"usr/bin/vim": "#!vim"}, nil)
			htopCommit = testutil.WriteCommit(src, "", "htop", testutil.Files{"usr/bin/htop": "#!htop"}, nil)
		})

		cache := gitstore.NewMemory()
		_, err := txn.Do(context.Background(), cache, pkgtree.Monitor{}, func(scope *txn.Scope) error {
			if _, err := replicate.PullPackage(context.Background(), scope, src, vim, vimCommit); err != nil {
				return err
			}
			_, err := replicate.PullPackage(context.Background(), scope, src, htop, htopCommit)
			return err
		})
		So(err, ShouldBeNil)
		index := NewIndex(cache)

		Convey("packages are found by identity", func() {
			commit, found, err := index.Lookup(vim)
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(commit, ShouldEqual, vimCommit)

			_, found, err = index.Lookup(nevra.MustParse("vim-enhanced-8.2.2637-1.fc34.x86_64"))
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)

			_, _, err = index.Lookup(api.PackageIdentity{Name: "vim"})
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrUsage)
		})

		Convey("listing decodes every branch, sorted", func() {
			entries, err := index.List()
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].Identity, ShouldResemble, htop)
			So(entries[0].Commit, ShouldEqual, htopCommit)
			So(entries[1].Identity, ShouldResemble, vim)
			So(entries[1].Branch, ShouldEqual, "pkgtree/pkg/vim-enhanced/2-8.2.2637-1.fc34.x86__64")

			Convey("and refuses to list around junk", func() {
				testutil.InTransaction(cache, func() {
					So(cache.SetRef(nevra.BranchPrefix+"junk", vimCommit), ShouldBeNil)
				})
				_, err := index.List()
				So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrMalformedBranch)
			})
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("The cache lives inside the system repo", t, func() {
		So(Path(fs.MustAbsolutePath("/sysroot/ostree/repo")).String(), ShouldEqual,
			"/sysroot/ostree/repo/extensions/pkgtree/pkgcache")
	})

	Convey("Opening creates the cache on first use", t, testutil.Requires(testutil.RequiresWritableTmp, func() {
		testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
			store, err := Open(Path(tmpDir))
			So(err, ShouldBeNil)
			entries, err := NewIndex(store).List()
			So(err, ShouldBeNil)
			So(entries, ShouldBeEmpty)

			_, err = gitstore.Open(Path(tmpDir), false)
			So(err, ShouldBeNil)
		})
	}))
}
