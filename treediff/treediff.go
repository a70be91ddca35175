/*
	Package treediff compares tree snapshots: path by path, and package by package.

	Everything here is read-only and deterministic: the same inputs always
	yield byte-identical reports.
*/
package treediff

import (
	"sort"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/fs"
	"github.com/polydawn/pkgtree/objstore"
	"github.com/polydawn/pkgtree/walker"
)

/*
	Diff reports every path that differs between two trees, sorted by path.

	Paths present only in newTree are Added, paths only in oldTree are Removed,
	and paths in both with different content or entry kind are Modified.
	A directory that only one side has is reported once, at its own path;
	its contents are not listed.  Renames appear as a Removed and an Added.
	An empty tree ID stands for the empty tree.

	Errors are those of reading the trees from the store.
*/
func Diff(store objstore.Reader, oldTree, newTree api.ObjectID) (_ []api.DiffEntry, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	d := differ{store: store}
	if err := d.trees(fs.RelPath{}, oldTree, newTree); err != nil {
		return nil, err
	}
	sort.SliceStable(d.entries, func(i, j int) bool {
		return d.entries[i].Path < d.entries[j].Path
	})
	return d.entries, nil
}

/*
	DiffCommits is Diff for the trees of two revisions (see walker.Resolve).
*/
func DiffCommits(store objstore.Reader, oldRev, newRev string) ([]api.DiffEntry, error) {
	oldCommit, err := readRev(store, oldRev)
	if err != nil {
		return nil, err
	}
	newCommit, err := readRev(store, newRev)
	if err != nil {
		return nil, err
	}
	return Diff(store, oldCommit.Tree, newCommit.Tree)
}

func readRev(store objstore.Reader, rev string) (objstore.Commit, error) {
	id, err := walker.Resolve(store, rev)
	if err != nil {
		return objstore.Commit{}, err
	}
	return store.ReadCommit(id)
}

type differ struct {
	store   objstore.Reader
	entries []api.DiffEntry
}

func (d *differ) read(id api.ObjectID) ([]objstore.TreeEntry, error) {
	if id == "" {
		return nil, nil
	}
	tree, err := d.store.ReadTree(id)
	if err != nil {
		return nil, err
	}
	return tree.SortedByName(), nil
}

// trees merge-walks two directories' entries in name order.
func (d *differ) trees(at fs.RelPath, oldID, newID api.ObjectID) error {
	if oldID == newID {
		return nil
	}
	olds, err := d.read(oldID)
	if err != nil {
		return err
	}
	news, err := d.read(newID)
	if err != nil {
		return err
	}
	i, j := 0, 0
	for i < len(olds) || j < len(news) {
		switch {
		case j >= len(news) || (i < len(olds) && olds[i].Name < news[j].Name):
			d.add(at.Child(olds[i].Name), api.DiffRemoved, olds[i].ID, "")
			i++
		case i >= len(olds) || news[j].Name < olds[i].Name:
			d.add(at.Child(news[j].Name), api.DiffAdded, "", news[j].ID)
			j++
		default:
			if err := d.entry(at.Child(olds[i].Name), olds[i], news[j]); err != nil {
				return err
			}
			i++
			j++
		}
	}
	return nil
}

func (d *differ) entry(at fs.RelPath, oldEnt, newEnt objstore.TreeEntry) error {
	switch {
	case oldEnt.ID == newEnt.ID && oldEnt.Kind == newEnt.Kind:
		return nil
	case oldEnt.Kind.IsDir() && newEnt.Kind.IsDir():
		return d.trees(at, oldEnt.ID, newEnt.ID)
	default:
		d.add(at, api.DiffModified, oldEnt.ID, newEnt.ID)
		return nil
	}
}

func (d *differ) add(at fs.RelPath, kind api.DiffKind, oldRef, newRef api.ObjectID) {
	d.entries = append(d.entries, api.DiffEntry{
		Path:   at.Bare(),
		Kind:   kind,
		OldRef: oldRef,
		NewRef: newRef,
	})
}

/*
	Render formats a diff for humans: an "Added:", a "Removed:", and a
	"Modified:" section, in that order, each listing its paths sorted,
	one per line as "  /path".  Empty sections are left out entirely,
	so an empty diff renders as the empty string.
*/
func Render(entries []api.DiffEntry) string {
	var sb strings.Builder
	for _, section := range []struct {
		kind  api.DiffKind
		title string
	}{
		{api.DiffAdded, "Added:"},
		{api.DiffRemoved, "Removed:"},
		{api.DiffModified, "Modified:"},
	} {
		var paths []string
		for _, ent := range entries {
			if ent.Kind == section.kind {
				paths = append(paths, "/"+strings.TrimPrefix(ent.Path, "/"))
			}
		}
		if len(paths) == 0 {
			continue
		}
		sort.Strings(paths)
		sb.WriteString(section.title)
		sb.WriteByte('\n')
		for _, p := range paths {
			sb.WriteString("  ")
			sb.WriteString(p)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
