package layer

import (
	"fmt"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore"
)

/*
	Annotate returns a copy of md carrying info's layering, at CurrentVersion.

	If info is not layered, the copy has every layering key removed instead.
	BaseLayer is not recorded: it is whatever parent the commit is written with.

	Errors are of category `pkgtree.ErrUsage` if info holds an invalid identity,
	a malformed local package checksum, or a replacement that changes name or arch.
*/
func Annotate(md api.Metadata, info api.LayeredInfo) (api.Metadata, error) {
	out := make(api.Metadata, len(md)+6)
	for k, v := range md {
		out[k] = v
	}
	for _, k := range []string{KeyClientLayer, KeyClientLayerVersion, KeyPackages, KeyLocalPackages, KeyRemovedBasePackages, KeyReplacedBasePackages} {
		delete(out, k)
	}
	if !info.IsLayered {
		return out, nil
	}

	packages, err := nevras(KeyPackages, info.LayeredPackages)
	if err != nil {
		return nil, err
	}
	removed, err := nevras(KeyRemovedBasePackages, info.RemovedBasePackages)
	if err != nil {
		return nil, err
	}
	locals := make([]string, 0, len(info.LocalPackages))
	for _, pair := range info.LocalPackages {
		if _, _, err := nevra.ParseChecksumNevra(pair.String()); err != nil {
			return nil, Errorf(pkgtree.ErrUsage, "cannot record local package %q: %s", pair, err)
		}
		locals = append(locals, pair.String())
	}
	replaced := make([]api.StringPair, 0, len(info.ReplacedBasePackages))
	for _, rep := range SortReplacements(append([]api.ReplacedPackage(nil), info.ReplacedBasePackages...)) {
		if err := rep.Old.Validate(); err != nil {
			return nil, Errorf(pkgtree.ErrUsage, "cannot record replaced package: %s", err)
		}
		if err := rep.New.Validate(); err != nil {
			return nil, Errorf(pkgtree.ErrUsage, "cannot record replacement package: %s", err)
		}
		if !rep.Old.SameSlot(rep.New) {
			return nil, Errorf(pkgtree.ErrUsage, "cannot replace %s with %s: name and arch must match", rep.Old, rep.New)
		}
		replaced = append(replaced, api.StringPair{A: rep.Old.String(), B: rep.New.String()})
	}

	out[KeyClientLayer] = api.BoolVariant(true)
	out[KeyClientLayerVersion] = api.UintVariant(CurrentVersion)
	out[KeyPackages] = api.StringsVariant(packages)
	out[KeyLocalPackages] = api.StringsVariant(locals)
	out[KeyRemovedBasePackages] = api.StringsVariant(removed)
	out[KeyReplacedBasePackages] = api.PairsVariant(replaced)
	return out, nil
}

func nevras(key string, ids []api.PackageIdentity) ([]string, error) {
	ids = SortIdentities(append([]api.PackageIdentity(nil), ids...))
	ss := make([]string, len(ids))
	for i, id := range ids {
		if err := id.Validate(); err != nil {
			return nil, Errorf(pkgtree.ErrUsage, "cannot record %s: %s", key, err)
		}
		ss[i] = id.String()
	}
	return ss, nil
}

// AnnotatePackageList returns a copy of md recording ids as the commit's complete package list.
func AnnotatePackageList(md api.Metadata, ids []api.PackageIdentity) (api.Metadata, error) {
	list, err := nevras(KeyPackageList, ids)
	if err != nil {
		return nil, err
	}
	out := make(api.Metadata, len(md)+1)
	for k, v := range md {
		out[k] = v
	}
	out[KeyPackageList] = api.StringsVariant(list)
	return out, nil
}

/*
	PackageList reads the complete list of packages installed in a commit,
	sorted and deduplicated.  found is false if the commit doesn't record one.

	Errors are of category `pkgtree.ErrCorruptLayeringMetadata` if the list
	is malformed, or as for reading the commit.
*/
func PackageList(store objstore.Reader, commit api.CommitID) (_ []api.PackageIdentity, found bool, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	c, err := store.ReadCommit(commit)
	if err != nil {
		return nil, false, err
	}
	if _, ok := c.Metadata[KeyPackageList]; !ok {
		return nil, false, nil
	}
	ids, err := decoder{commit: c}.identities(KeyPackageList)
	if err != nil {
		return nil, true, err
	}
	return ids, true, nil
}

// Describe summarizes a layering for humans, one package per line.
func Describe(info api.LayeredInfo) string {
	if !info.IsLayered {
		return "not layered\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "base layer: %s\n", info.BaseLayer)
	for _, id := range info.LayeredPackages {
		fmt.Fprintf(&sb, "  + %s\n", id)
	}
	for _, pair := range info.LocalPackages {
		fmt.Fprintf(&sb, "  + %s (local %.12s)\n", pair.Nevra, pair.Sha256)
	}
	for _, id := range info.RemovedBasePackages {
		fmt.Fprintf(&sb, "  - %s\n", id)
	}
	for _, rep := range info.ReplacedBasePackages {
		fmt.Fprintf(&sb, "  ~ %s -> %s\n", rep.Old, rep.New.EVR())
	}
	return sb.String()
}
