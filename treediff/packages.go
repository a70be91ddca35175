package treediff

import (
	"fmt"
	"sort"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/layer"
	"github.com/polydawn/pkgtree/objstore"
)

/*
	DiffPackages compares two package lists by name and arch.

	A package whose only build changed between the lists is Modified, with
	both sides set.  Anything else is an Added or Removed of the exact build;
	in particular, a slot holding several builds at once (as kernels commonly
	do) reports each build that came or went on its own.

	The result is sorted by the package's identity (the new side for
	Added, the old side otherwise).
*/
func DiffPackages(oldPkgs, newPkgs []api.PackageIdentity) []api.PackageChange {
	type slot struct{ name, arch string }
	gone := map[slot][]api.PackageIdentity{}
	came := map[slot][]api.PackageIdentity{}
	for _, id := range oldPkgs {
		if !contains(newPkgs, id) {
			k := slot{id.Name, id.Arch}
			gone[k] = appendUnique(gone[k], id)
		}
	}
	for _, id := range newPkgs {
		if !contains(oldPkgs, id) {
			k := slot{id.Name, id.Arch}
			came[k] = appendUnique(came[k], id)
		}
	}

	var changes []api.PackageChange
	for k, olds := range gone {
		news := came[k]
		if len(olds) == 1 && len(news) == 1 {
			changes = append(changes, api.PackageChange{Kind: api.DiffModified, Old: &olds[0], New: &news[0]})
			delete(came, k)
			continue
		}
		for i := range olds {
			changes = append(changes, api.PackageChange{Kind: api.DiffRemoved, Old: &olds[i]})
		}
	}
	for _, news := range came {
		for i := range news {
			changes = append(changes, api.PackageChange{Kind: api.DiffAdded, New: &news[i]})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i].Subject(), changes[j].Subject()
		if !a.Equal(b) {
			return a.Less(b)
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes
}

func contains(ids []api.PackageIdentity, id api.PackageIdentity) bool {
	for _, x := range ids {
		if x.Equal(id) {
			return true
		}
	}
	return false
}

func appendUnique(ids []api.PackageIdentity, id api.PackageIdentity) []api.PackageIdentity {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

/*
	DiffCommitPackages is DiffPackages for the package lists recorded on
	two revisions.

	Errors are of category `pkgtree.ErrUsage` if either commit records no
	package list, or as for resolving revisions and reading layering metadata.
*/
func DiffCommitPackages(store objstore.Reader, oldRev, newRev string) (_ []api.PackageChange, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	oldPkgs, err := packageList(store, oldRev)
	if err != nil {
		return nil, err
	}
	newPkgs, err := packageList(store, newRev)
	if err != nil {
		return nil, err
	}
	return DiffPackages(oldPkgs, newPkgs), nil
}

func packageList(store objstore.Reader, rev string) ([]api.PackageIdentity, error) {
	commit, err := readRev(store, rev)
	if err != nil {
		return nil, err
	}
	ids, found, err := layer.PackageList(store, commit.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrorDetailed(pkgtree.ErrUsage,
			fmt.Sprintf("commit %s (%q) records no package list", commit.ID.Short(), rev),
			map[string]string{"rev": rev, "commit": commit.ID.String()})
	}
	return ids, nil
}

/*
	RenderPackages formats a package diff in the same sections as Render.
	Modified lines show the old build and the new one's "[epoch:]version-release".
*/
func RenderPackages(changes []api.PackageChange) string {
	var sb strings.Builder
	for _, section := range []struct {
		kind  api.DiffKind
		title string
	}{
		{api.DiffAdded, "Added:"},
		{api.DiffRemoved, "Removed:"},
		{api.DiffModified, "Modified:"},
	} {
		first := true
		for _, c := range changes {
			if c.Kind != section.kind {
				continue
			}
			if first {
				sb.WriteString(section.title + "\n")
				first = false
			}
			switch c.Kind {
			case api.DiffAdded:
				fmt.Fprintf(&sb, "  %s\n", c.New)
			case api.DiffRemoved:
				fmt.Fprintf(&sb, "  %s\n", c.Old)
			case api.DiffModified:
				fmt.Fprintf(&sb, "  %s -> %s\n", c.Old, c.New.EVR())
			}
		}
	}
	return sb.String()
}
