package nevra

import (
	"fmt"
	"strconv"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
)

/*
	Cache branches are named:

		pkgtree/pkg/<name>/<epoch-or-marker>-<version>-<release>.<arch>

	Each field is escaped so that the separators can be found again unambiguously:
	a byte which may not appear raw in its field is written as '_' followed by
	two uppercase hex digits, except that the escape byte '_' itself is
	written doubled, as "__".

	Which bytes may appear raw:

	  - name: [A-Za-z0-9.-], except that a leading '.' is escaped
	    (so no path segment is ever "." or "..").
	  - epoch, version, release: [A-Za-z0-9.] -- dashes separate them.
	  - arch: [A-Za-z0-9-] -- the last dot separates it.

	A missing epoch is written as the reserved marker "_N", which can never be
	produced by escaping (N is neither '_' nor a hex digit); a present epoch is written in decimal, so "no epoch"
	and "epoch 0" have distinct encodings.

	Decoding accepts only exactly what encoding produces, so the mapping is a
	bijection between valid identities and valid branch names.
*/
const BranchPrefix = "pkgtree/pkg/"

const (
	escapeByte    = '_'
	noEpochMarker = "_N"
)

type fieldRule struct {
	keepDot      bool
	keepDash     bool
	noLeadingDot bool
}

var (
	nameRule = fieldRule{keepDot: true, keepDash: true, noLeadingDot: true}
	evrRule  = fieldRule{keepDot: true}
	archRule = fieldRule{keepDash: true}
)

// keeps reports whether byte c may appear unescaped at offset i of the decoded field.
func (r fieldRule) keeps(c byte, i int) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '.':
		return r.keepDot && !(r.noLeadingDot && i == 0)
	case c == '-':
		return r.keepDash
	default:
		return false
	}
}

func (r fieldRule) escape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case r.keeps(s[i], i):
			sb.WriteByte(s[i])
		case s[i] == escapeByte:
			sb.WriteString("__")
		default:
			fmt.Fprintf(&sb, "%c%02X", escapeByte, s[i])
		}
	}
	return sb.String()
}

func (r fieldRule) unescape(s string) (string, error) {
	var out []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != escapeByte {
			if !r.keeps(c, len(out)) {
				return "", fmt.Errorf("byte %q at offset %d must be escaped", c, i)
			}
			out = append(out, c)
			continue
		}
		if i+1 < len(s) && s[i+1] == escapeByte {
			out = append(out, escapeByte)
			i++
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape at offset %d", i)
		}
		b, ok := unhex(s[i+1], s[i+2])
		if !ok {
			return "", fmt.Errorf("invalid escape %q at offset %d", s[i:i+3], i)
		}
		if b == escapeByte || r.keeps(b, len(out)) {
			return "", fmt.Errorf("needless escape %q at offset %d", s[i:i+3], i)
		}
		out = append(out, b)
		i += 2
	}
	return string(out), nil
}

// unhex decodes two uppercase hex digits.  Lowercase is refused so every byte has one spelling.
func unhex(hi, lo byte) (byte, bool) {
	h, ok1 := hexval(hi)
	l, ok2 := hexval(lo)
	return h<<4 | l, ok1 && ok2
}

func hexval(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

/*
	Return the cache branch name for a package identity.

	Errors are of category `pkgtree.ErrUsage`, and only occur if the identity
	is invalid (i.e. has an empty required field).
*/
func EncodeBranch(id api.PackageIdentity) (string, error) {
	if err := id.Validate(); err != nil {
		return "", Errorf(pkgtree.ErrUsage, "cannot name cache branch: %s", err)
	}
	epoch := noEpochMarker
	if id.Epoch != nil {
		epoch = strconv.FormatUint(*id.Epoch, 10)
	}
	return BranchPrefix +
		nameRule.escape(id.Name) + "/" +
		epoch + "-" +
		evrRule.escape(id.Version) + "-" +
		evrRule.escape(id.Release) + "." +
		archRule.escape(id.Arch), nil
}

/*
	Recover the package identity from a cache branch name.

	Errors are of category `pkgtree.ErrMalformedBranch`.
*/
func DecodeBranch(branch string) (api.PackageIdentity, error) {
	malformed := func(reason string) error {
		return ErrorDetailed(pkgtree.ErrMalformedBranch,
			fmt.Sprintf("malformed cache branch %q: %s", branch, reason),
			map[string]string{"branch": branch})
	}
	if !strings.HasPrefix(branch, BranchPrefix) {
		return api.PackageIdentity{}, malformed(fmt.Sprintf("missing prefix %q", BranchPrefix))
	}
	segments := strings.Split(branch[len(BranchPrefix):], "/")
	if len(segments) != 2 {
		return api.PackageIdentity{}, malformed("expected exactly <name>/<evr>.<arch> after the prefix")
	}
	var id api.PackageIdentity
	var err error
	if id.Name, err = nameRule.unescape(segments[0]); err != nil {
		return api.PackageIdentity{}, malformed("name: " + err.Error())
	}
	tail := segments[1]
	dot := strings.LastIndexByte(tail, '.')
	if dot < 0 {
		return api.PackageIdentity{}, malformed("no arch separator")
	}
	if id.Arch, err = archRule.unescape(tail[dot+1:]); err != nil {
		return api.PackageIdentity{}, malformed("arch: " + err.Error())
	}
	evr := strings.Split(tail[:dot], "-")
	if len(evr) != 3 {
		return api.PackageIdentity{}, malformed(fmt.Sprintf("expected 3 dash-separated epoch-version-release fields, found %d", len(evr)))
	}
	if evr[0] != noEpochMarker {
		epoch, err := parseEpoch(evr[0])
		if err != nil {
			return api.PackageIdentity{}, malformed(fmt.Sprintf("invalid epoch %q", evr[0]))
		}
		id.Epoch = &epoch
	}
	if id.Version, err = evrRule.unescape(evr[1]); err != nil {
		return api.PackageIdentity{}, malformed("version: " + err.Error())
	}
	if id.Release, err = evrRule.unescape(evr[2]); err != nil {
		return api.PackageIdentity{}, malformed("release: " + err.Error())
	}
	if err := id.Validate(); err != nil {
		return api.PackageIdentity{}, malformed(err.Error())
	}
	return id, nil
}

// BranchToNevra decodes a cache branch straight to its NEVRA string.
func BranchToNevra(branch string) (string, error) {
	id, err := DecodeBranch(branch)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
