package nevra

import (
	"fmt"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
)

// ChecksumNevraDelimiter separates the checksum from the NEVRA in a "<sha256>:<nevra>" composite.
const ChecksumNevraDelimiter = ':'

const sha256HexLen = 64

/*
	Split a "<sha256>:<nevra>" composite on the first delimiter.

	The checksum must be exactly 64 lowercase hex digits and the NEVRA must be
	non-empty.  The NEVRA is not otherwise parsed; see ParseChecksumNevra.

	Errors are of category `pkgtree.ErrInvalidChecksumFormat`.
*/
func SplitChecksumNevra(s string) (api.ChecksumNevraPair, error) {
	invalid := func(reason string) error {
		return ErrorDetailed(pkgtree.ErrInvalidChecksumFormat,
			fmt.Sprintf("invalid checksum:nevra %q: %s", s, reason),
			map[string]string{"value": s})
	}
	idx := strings.IndexByte(s, ChecksumNevraDelimiter)
	if idx < 0 {
		return api.ChecksumNevraPair{}, invalid("missing delimiter")
	}
	sum, nevra := s[:idx], s[idx+1:]
	if len(sum) != sha256HexLen {
		return api.ChecksumNevraPair{}, invalid(fmt.Sprintf("checksum must be %d hex digits, found %d characters", sha256HexLen, len(sum)))
	}
	if !isLowerHex(sum) {
		return api.ChecksumNevraPair{}, invalid("checksum is not lowercase hex")
	}
	if nevra == "" {
		return api.ChecksumNevraPair{}, invalid("empty nevra")
	}
	return api.ChecksumNevraPair{Sha256: sum, Nevra: nevra}, nil
}

/*
	Split a composite and also parse its NEVRA.

	Errors are of category `pkgtree.ErrInvalidChecksumFormat` or
	`pkgtree.ErrMalformedNevra`.
*/
func ParseChecksumNevra(s string) (api.ChecksumNevraPair, api.PackageIdentity, error) {
	pair, err := SplitChecksumNevra(s)
	if err != nil {
		return api.ChecksumNevraPair{}, api.PackageIdentity{}, err
	}
	id, err := Parse(pair.Nevra)
	if err != nil {
		return api.ChecksumNevraPair{}, api.PackageIdentity{}, err
	}
	return pair, id, nil
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
