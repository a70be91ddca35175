package config

import (
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func withEnv(vars map[string]string, fn func()) {
	saved := map[string]string{}
	for k, v := range vars {
		saved[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
	defer func() {
		for k, v := range saved {
			os.Setenv(k, v)
		}
	}()
	fn()
}

func TestPaths(t *testing.T) {
	Convey("Paths default relative to each other", t, func() {
		withEnv(map[string]string{"PKGTREE_BASE": "", "PKGTREE_REPO": "", "PKGTREE_PKGCACHE": ""}, func() {
			So(GetBasePath().String(), ShouldEqual, "/var/lib/pkgtree")
			So(GetRepoPath().String(), ShouldEqual, "/var/lib/pkgtree/repo")
			So(GetPkgcachePath().String(), ShouldEqual, "/var/lib/pkgtree/repo/extensions/pkgtree/pkgcache")
		})
	})

	Convey("Each path can be overridden", t, func() {
		withEnv(map[string]string{"PKGTREE_BASE": "/srv/pt", "PKGTREE_REPO": "", "PKGTREE_PKGCACHE": ""}, func() {
			So(GetRepoPath().String(), ShouldEqual, "/srv/pt/repo")
			So(GetPkgcachePath().String(), ShouldEqual, "/srv/pt/repo/extensions/pkgtree/pkgcache")
		})
		withEnv(map[string]string{"PKGTREE_BASE": "/srv/pt", "PKGTREE_REPO": "/ostree/repo", "PKGTREE_PKGCACHE": ""}, func() {
			So(GetPkgcachePath().String(), ShouldEqual, "/ostree/repo/extensions/pkgtree/pkgcache")
		})
		withEnv(map[string]string{"PKGTREE_PKGCACHE": "/tmp/../cache//"}, func() {
			So(GetPkgcachePath().String(), ShouldEqual, "/cache")
		})
	})
}
