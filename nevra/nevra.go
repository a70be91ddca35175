/*
	Package nevra converts package identities to and from their string forms:
	the conventional "name-[epoch:]version-release.arch" string,
	the cache branch names under which package content is stored,
	and the "<sha256>:<nevra>" composites recorded for local packages.

	All functions are pure and safe for concurrent use.
*/
package nevra

import (
	"strconv"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
)

/*
	Parse a NEVRA string of the form "name-[epoch:]version-release.arch".

	The arch is everything after the last '.'; the release and version are the
	last two '-'-separated segments before that; the name is the rest (and so
	may itself contain dashes).  An epoch is present iff the version segment
	contains a ':'.

	Errors are of category `pkgtree.ErrMalformedNevra`.
*/
func Parse(s string) (api.PackageIdentity, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return api.PackageIdentity{}, Errorf(pkgtree.ErrMalformedNevra, "nevra %q has no arch", s)
	}
	id := api.PackageIdentity{Arch: s[dot+1:]}
	rest := s[:dot]
	dash := strings.LastIndexByte(rest, '-')
	if dash < 0 {
		return api.PackageIdentity{}, Errorf(pkgtree.ErrMalformedNevra, "nevra %q has no release", s)
	}
	id.Release = rest[dash+1:]
	rest = rest[:dash]
	dash = strings.LastIndexByte(rest, '-')
	if dash < 0 {
		return api.PackageIdentity{}, Errorf(pkgtree.ErrMalformedNevra, "nevra %q has no version", s)
	}
	id.Name = rest[:dash]
	ev := rest[dash+1:]
	if colon := strings.IndexByte(ev, ':'); colon >= 0 {
		epoch, err := parseEpoch(ev[:colon])
		if err != nil {
			return api.PackageIdentity{}, Errorf(pkgtree.ErrMalformedNevra, "nevra %q has invalid epoch: %s", s, err)
		}
		id.Epoch = &epoch
		ev = ev[colon+1:]
	}
	id.Version = ev
	if err := id.Validate(); err != nil {
		return api.PackageIdentity{}, Errorf(pkgtree.ErrMalformedNevra, "nevra %q: %s", s, err)
	}
	return id, nil
}

// MustParse is Parse for literals in tests and tables.  Panics on error.
func MustParse(s string) api.PackageIdentity {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

/*
	Epochs are plain decimal with no sign and no leading zeros
	(so that every epoch has exactly one spelling).
*/
func parseEpoch(s string) (uint64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseUint(s, 10, 64)
}
