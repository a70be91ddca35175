package testutil

import (
	"io/ioutil"
	"os"

	"github.com/polydawn/pkgtree/fs"
)

/*
	Run fn with a fresh temp dir, removing it (and everything in it) afterwards.

	The dir is created under the system temp dir, or under $PKGTREE_TEST_TMP if set.
*/
func WithTmpdir(fn func(tmpDir fs.AbsolutePath)) {
	dir, err := ioutil.TempDir(os.Getenv("PKGTREE_TEST_TMP"), "pkgtree-test-")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	fn(fs.MustAbsolutePath(dir))
}
