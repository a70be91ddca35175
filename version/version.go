/*
	Package version numbers commits automatically.

	A series of commits built from the same prefix (say "34") is versioned
	"34", "34.1", "34.2", and so on: each new commit takes the version after
	the one recorded on its parent.  Versions are recorded in commit
	metadata under Key.
*/
package version

import (
	"strconv"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/objstore"
)

// Key is the commit metadata key holding a commit's version string.
const Key = "version"

/*
	Next returns the version following last in the series for prefix.

	If last is empty or not in the series, the series starts over at the bare
	prefix.  The bare prefix is followed by "<prefix>.1".  Otherwise the
	number after "<prefix>." is incremented; only its leading digits count,
	so "34.2-rc" is followed by "34.3", and no digits at all count as zero.
	A number too large to increment starts the series over.
*/
func Next(prefix, last string) string {
	if !strings.HasPrefix(last, prefix) {
		return prefix
	}
	if last == prefix {
		return prefix + ".1"
	}
	rest := last[len(prefix):]
	if rest[0] != '.' {
		return prefix
	}
	rest = rest[1:]
	end := 0
	for end < len(rest) && '0' <= rest[end] && rest[end] <= '9' {
		end++
	}
	var n uint64
	if end > 0 {
		var err error
		if n, err = strconv.ParseUint(rest[:end], 10, 64); err != nil || n == ^uint64(0) {
			return prefix
		}
	}
	return prefix + "." + strconv.FormatUint(n+1, 10)
}

/*
	ForChild returns the version for a new commit on top of parent,
	continuing from the version recorded on parent.  An empty parent
	(a root commit) or an unversioned one starts the series.

	May return errors of category:

	  - `pkgtree.ErrUsage` -- if prefix is empty
	  - `pkgtree.ErrObjectNotFound`, `pkgtree.ErrStoreCorrupt` -- as for reading the parent
	  - `pkgtree.ErrStoreCorrupt` -- if the parent's version is not a string
*/
func ForChild(store objstore.Reader, parent api.CommitID, prefix string) (_ string, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	if prefix == "" {
		return "", Errorf(pkgtree.ErrUsage, "version prefix may not be empty")
	}
	if parent == "" {
		return prefix, nil
	}
	commit, err := store.ReadCommit(parent)
	if err != nil {
		return "", err
	}
	last, _, err := commit.Metadata.LookupString(Key)
	if err != nil {
		return "", ErrorDetailed(pkgtree.ErrStoreCorrupt, err.Error(),
			map[string]string{"commit": parent.String(), "key": Key})
	}
	return Next(prefix, last), nil
}
