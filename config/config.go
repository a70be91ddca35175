/*
	Helpers for loading contextual config.

	Config for pkgtree means "where things live on this host":
	the system repository and the package cache beside it.
	Library functions never read config themselves; they take explicit
	store handles, and only the CLI consults these to find its defaults.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/polydawn/pkgtree/fs"
)

// PkgcacheSubpath is where the package cache repository lives inside the system repository.
const PkgcacheSubpath = "extensions/pkgtree/pkgcache"

/*
	Return the home-base path prefix that is the default root for all other pkgtree paths.

	The default value is `"/var/lib/pkgtree"`;
	this can be overriden by the `PKGTREE_BASE` environment variable.
*/
func GetBasePath() fs.AbsolutePath {
	return envPath("PKGTREE_BASE", func() fs.AbsolutePath {
		return fs.MustAbsolutePath("/var/lib/pkgtree")
	})
}

/*
	Return the path of the system repository.

	The default value is `"$PKGTREE_BASE/repo"`;
	this can be overriden by the `PKGTREE_REPO` environment variable.
*/
func GetRepoPath() fs.AbsolutePath {
	return envPath("PKGTREE_REPO", func() fs.AbsolutePath {
		return GetBasePath().Join(fs.MustRelPath("repo"))
	})
}

/*
	Return the path of the package cache repository.

	The default value is `"$PKGTREE_REPO/extensions/pkgtree/pkgcache"`;
	this can be overriden by the `PKGTREE_PKGCACHE` environment variable.
*/
func GetPkgcachePath() fs.AbsolutePath {
	return envPath("PKGTREE_PKGCACHE", func() fs.AbsolutePath {
		return GetRepoPath().Join(fs.MustRelPath(PkgcacheSubpath))
	})
}

// Relative values are taken relative to the working directory.
func envPath(name string, dflt func() fs.AbsolutePath) fs.AbsolutePath {
	pth := os.Getenv(name)
	if pth == "" {
		return dflt()
	}
	return Abs(pth)
}

// Abs makes a host path absolute against the working directory.
func Abs(pth string) fs.AbsolutePath {
	pth, err := filepath.Abs(pth)
	if err != nil {
		panic(err)
	}
	return fs.MustAbsolutePath(pth)
}
