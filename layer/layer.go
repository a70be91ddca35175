/*
	Package layer reads (and writes) the layering annotations on deployment commits.

	A layered commit is a base image commit plus client-side package changes:
	packages added on top, packages from the base removed, and base packages
	replaced by other builds of the same package.  The changes are recorded
	in the commit's metadata dictionary under the keys below; the base image
	is the commit's parent.

	The annotation layout is versioned:

	  - version 1 records only the layered packages;
	  - version 2 adds packages supplied as local files;
	  - version 3 adds removed and replaced base packages.

	Every key a version introduces is required at that version and above.
*/
package layer

import (
	"fmt"
	"sort"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore"
)

const (
	KeyClientLayer          = "pkgtree.clientlayer"            // b
	KeyClientLayerVersion   = "pkgtree.clientlayer_version"    // u
	KeyPackages             = "pkgtree.packages"               // as, NEVRAs
	KeyLocalPackages        = "pkgtree.local-packages"         // as, "<sha256>:<nevra>"
	KeyRemovedBasePackages  = "pkgtree.removed-base-packages"  // as, NEVRAs
	KeyReplacedBasePackages = "pkgtree.replaced-base-packages" // a(ss), (old, new) NEVRAs
	KeyPackageList          = "pkgtree.rpmdb.pkglist"          // as, NEVRAs of everything installed
)

const (
	MinVersion     = 1
	CurrentVersion = 3
)

/*
	Inspect reads the layering of a deployment's commit.

	A commit without the layering annotation (or with it set false) is not
	layered; the result then has IsLayered false and every set empty.

	May return errors of category:

	  - `pkgtree.ErrCorruptLayeringMetadata` -- if any annotation is malformed;
	    no partial result is ever returned
	  - `pkgtree.ErrObjectNotFound` -- if the deployment's commit isn't in the store
	  - `pkgtree.ErrStoreCorrupt` -- if the commit can't be decoded
*/
func Inspect(store objstore.Reader, deployment api.Deployment) (_ api.LayeredInfo, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	commit, err := store.ReadCommit(deployment.Checksum)
	if err != nil {
		return api.LayeredInfo{}, err
	}
	return FromCommit(commit)
}

// FromCommit is Inspect for a commit already in hand.
func FromCommit(commit objstore.Commit) (api.LayeredInfo, error) {
	d := decoder{commit: commit}
	info, err := d.decode()
	if err != nil {
		return api.LayeredInfo{}, err
	}
	return info, nil
}

func notLayered() api.LayeredInfo {
	return api.LayeredInfo{
		LayeredPackages:      []api.PackageIdentity{},
		LocalPackages:        []api.ChecksumNevraPair{},
		RemovedBasePackages:  []api.PackageIdentity{},
		ReplacedBasePackages: []api.ReplacedPackage{},
	}
}

type decoder struct {
	commit objstore.Commit
}

func (d decoder) decode() (api.LayeredInfo, error) {
	md := d.commit.Metadata
	layered, _, err := md.LookupBool(KeyClientLayer)
	if err != nil {
		return api.LayeredInfo{}, d.corrupt(KeyClientLayer, err)
	}
	if !layered {
		return notLayered(), nil
	}

	version, found, err := md.LookupUint(KeyClientLayerVersion)
	switch {
	case err != nil:
		return api.LayeredInfo{}, d.corrupt(KeyClientLayerVersion, err)
	case !found:
		version = MinVersion
	case version < MinVersion || version > CurrentVersion:
		return api.LayeredInfo{}, d.corrupt(KeyClientLayerVersion, fmt.Errorf("unknown layering version %d", version))
	}

	if d.commit.Parent == "" {
		return api.LayeredInfo{}, d.corrupt(KeyClientLayer, fmt.Errorf("layered commit has no base layer parent"))
	}
	info := notLayered()
	info.IsLayered = true
	info.BaseLayer = d.commit.Parent

	if info.LayeredPackages, err = d.identities(KeyPackages); err != nil {
		return api.LayeredInfo{}, err
	}
	if version >= 2 {
		if info.LocalPackages, err = d.localPackages(); err != nil {
			return api.LayeredInfo{}, err
		}
	}
	if version >= 3 {
		if info.RemovedBasePackages, err = d.identities(KeyRemovedBasePackages); err != nil {
			return api.LayeredInfo{}, err
		}
		if info.ReplacedBasePackages, err = d.replaced(); err != nil {
			return api.LayeredInfo{}, err
		}
	}
	return info, nil
}

func (d decoder) requireStrings(key string) ([]string, error) {
	ss, found, err := d.commit.Metadata.LookupStrings(key)
	if err == nil && !found {
		err = api.ErrMetadataShape{Key: key, Want: api.VariantStrings}
	}
	if err != nil {
		return nil, d.corrupt(key, err)
	}
	return ss, nil
}

func (d decoder) identities(key string) ([]api.PackageIdentity, error) {
	entries, err := d.requireStrings(key)
	if err != nil {
		return nil, err
	}
	ids := make([]api.PackageIdentity, 0, len(entries))
	for _, entry := range entries {
		id, err := nevra.Parse(entry)
		if err != nil {
			return nil, d.corruptEntry(key, entry, err)
		}
		ids = append(ids, id)
	}
	return SortIdentities(ids), nil
}

func (d decoder) localPackages() ([]api.ChecksumNevraPair, error) {
	entries, err := d.requireStrings(KeyLocalPackages)
	if err != nil {
		return nil, err
	}
	type local struct {
		pair api.ChecksumNevraPair
		id   api.PackageIdentity
	}
	locals := make([]local, 0, len(entries))
	for _, entry := range entries {
		pair, id, err := nevra.ParseChecksumNevra(entry)
		if err != nil {
			return nil, d.corruptEntry(KeyLocalPackages, entry, err)
		}
		locals = append(locals, local{pair, id})
	}
	sort.SliceStable(locals, func(i, j int) bool {
		if !locals[i].id.Equal(locals[j].id) {
			return locals[i].id.Less(locals[j].id)
		}
		return locals[i].pair.Sha256 < locals[j].pair.Sha256
	})
	pairs := make([]api.ChecksumNevraPair, 0, len(locals))
	for i, l := range locals {
		if i > 0 && l.pair == locals[i-1].pair {
			continue
		}
		pairs = append(pairs, l.pair)
	}
	return pairs, nil
}

func (d decoder) replaced() ([]api.ReplacedPackage, error) {
	raw, found, err := d.commit.Metadata.LookupPairs(KeyReplacedBasePackages)
	if err == nil && !found {
		err = api.ErrMetadataShape{Key: KeyReplacedBasePackages, Want: api.VariantPairs}
	}
	if err != nil {
		return nil, d.corrupt(KeyReplacedBasePackages, err)
	}
	reps := make([]api.ReplacedPackage, 0, len(raw))
	for _, pair := range raw {
		entry := "(" + pair.A + ", " + pair.B + ")"
		old, err := nevra.Parse(pair.A)
		if err != nil {
			return nil, d.corruptEntry(KeyReplacedBasePackages, entry, err)
		}
		repl, err := nevra.Parse(pair.B)
		if err != nil {
			return nil, d.corruptEntry(KeyReplacedBasePackages, entry, err)
		}
		if !old.SameSlot(repl) {
			return nil, d.corruptEntry(KeyReplacedBasePackages, entry, fmt.Errorf("replacement must keep name and arch"))
		}
		reps = append(reps, api.ReplacedPackage{Old: old, New: repl})
	}
	return SortReplacements(reps), nil
}

func (d decoder) corrupt(key string, cause error) error {
	return ErrorDetailed(pkgtree.ErrCorruptLayeringMetadata,
		fmt.Sprintf("commit %s: layering metadata %q: %s", d.commit.ID.Short(), key, cause),
		map[string]string{
			"commit": d.commit.ID.String(),
			"key":    key,
		})
}

func (d decoder) corruptEntry(key, entry string, cause error) error {
	return ErrorDetailed(pkgtree.ErrCorruptLayeringMetadata,
		fmt.Sprintf("commit %s: layering metadata %q has bad entry %q: %s", d.commit.ID.Short(), key, entry, cause),
		map[string]string{
			"commit": d.commit.ID.String(),
			"key":    key,
			"entry":  entry,
		})
}

// SortIdentities sorts ids by PackageIdentity.Less and drops duplicates, in place.
func SortIdentities(ids []api.PackageIdentity) []api.PackageIdentity {
	sort.SliceStable(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	out := ids[:0]
	for _, id := range ids {
		if len(out) > 0 && id.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// SortReplacements sorts by old then new identity and drops duplicates, in place.
func SortReplacements(reps []api.ReplacedPackage) []api.ReplacedPackage {
	sort.SliceStable(reps, func(i, j int) bool {
		if !reps[i].Old.Equal(reps[j].Old) {
			return reps[i].Old.Less(reps[j].Old)
		}
		return reps[i].New.Less(reps[j].New)
	})
	out := reps[:0]
	for _, r := range reps {
		if n := len(out); n > 0 && r.Old.Equal(out[n-1].Old) && r.New.Equal(out[n-1].New) {
			continue
		}
		out = append(out, r)
	}
	return out
}
