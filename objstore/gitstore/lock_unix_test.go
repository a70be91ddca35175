//go:build !windows
// +build !windows

package gitstore

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/pkgtree/fs"
	"github.com/polydawn/pkgtree/testutil"
)

func TestLockReleaseAfterCommit(t *testing.T) {
	Convey("Losing the lock after refs are published doesn't fail the commit", t,
		testutil.Requires(testutil.RequiresWritableTmp, func() {
			testutil.WithTmpdir(func(tmpDir fs.AbsolutePath) {
				store, err := Open(tmpDir.Join(fs.MustRelPath("repo")), true)
				So(err, ShouldBeNil)
				So(store.PrepareTransaction(), ShouldBeNil)
				head := testutil.WriteCommit(store, "", "head", testutil.Files{"a": "1"}, nil)
				So(store.SetRef("main", head), ShouldBeNil)
				store.tx.lock.f.Close()

				stats, err := store.CommitTransaction()
				So(err, ShouldBeNil)
				So(stats.RefsUpdated, ShouldEqual, 1)
				So(stats.Warnings, ShouldHaveLength, 1)
				So(stats.Warnings[0], ShouldContainSubstring, "cannot release repository lock")

				got, found, err := store.ResolveRef("main")
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(got, ShouldEqual, head)
			})
		}),
	)
}
