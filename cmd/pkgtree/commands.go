package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/config"
	"github.com/polydawn/pkgtree/fs"
	"github.com/polydawn/pkgtree/layer"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore/gitstore"
	"github.com/polydawn/pkgtree/pkgcache"
	"github.com/polydawn/pkgtree/replicate"
	"github.com/polydawn/pkgtree/treediff"
	"github.com/polydawn/pkgtree/txn"
	"github.com/polydawn/pkgtree/version"
	"github.com/polydawn/pkgtree/walker"
)

func openRepo(cli baseCLI, create bool) (*gitstore.Store, error) {
	return gitstore.Open(fs.MustAbsolutePath(cli.repoPath()), create)
}

func executeLog(cli baseCLI) (interface{}, string, error) {
	store, err := openRepo(cli, false)
	if err != nil {
		return nil, "", err
	}
	rng, err := walker.ResolveRange(store, cli.LogCLI.From, cli.LogCLI.To)
	if err != nil {
		return nil, "", err
	}
	entries := make([]logEntry, 0, rng.Len())
	var sb strings.Builder
	it := rng.Iterator()
	for it.Next() {
		c := it.Commit()
		entries = append(entries, logEntry{c.ID, c.Parent, c.Subject, c.Timestamp})
		fmt.Fprintf(&sb, "%s %s %s\n", c.ID, c.Timestamp.UTC().Format(time.RFC3339), c.Subject)
	}
	if it.Err() != nil {
		return nil, "", it.Err()
	}
	return entries, sb.String(), nil
}

func executeDiff(cli baseCLI) (interface{}, string, error) {
	store, err := openRepo(cli, false)
	if err != nil {
		return nil, "", err
	}
	if cli.DiffCLI.Packages {
		changes, err := treediff.DiffCommitPackages(store, cli.DiffCLI.Old, cli.DiffCLI.New)
		if err != nil {
			return nil, "", err
		}
		return changes, treediff.RenderPackages(changes), nil
	}
	entries, err := treediff.DiffCommits(store, cli.DiffCLI.Old, cli.DiffCLI.New)
	if err != nil {
		return nil, "", err
	}
	return entries, treediff.Render(entries), nil
}

func executeLayers(cli baseCLI) (interface{}, string, error) {
	store, err := openRepo(cli, false)
	if err != nil {
		return nil, "", err
	}
	id, err := walker.Resolve(store, cli.LayersCLI.Rev)
	if err != nil {
		return nil, "", err
	}
	info, err := layer.Inspect(store, api.Deployment{Checksum: id})
	if err != nil {
		return nil, "", err
	}
	return info, layer.Describe(info), nil
}

/*
	Pull one commit from the source repo.

	Plain content goes into the system repository, and no ref is set;
	with a package identity, the content goes into the package cache
	under that package's branch.
*/
func executePull(ctx context.Context, cli baseCLI, mon pkgtree.Monitor) (interface{}, string, error) {
	src, err := gitstore.Open(config.Abs(cli.PullCLI.Source), false)
	if err != nil {
		return nil, "", err
	}
	commit, err := walker.Resolve(src, cli.PullCLI.Rev)
	if err != nil {
		return nil, "", err
	}

	var pull func(*txn.Scope) (replicate.PullStats, error)
	var dest *gitstore.Store
	if cli.PullCLI.Package != "" {
		id, err := nevra.Parse(cli.PullCLI.Package)
		if err != nil {
			return nil, "", err
		}
		if dest, err = pkgcache.Open(cli.pkgcachePath()); err != nil {
			return nil, "", err
		}
		pull = func(scope *txn.Scope) (replicate.PullStats, error) {
			return replicate.PullPackage(ctx, scope, src, id, commit)
		}
	} else {
		if dest, err = openRepo(cli, true); err != nil {
			return nil, "", err
		}
		pull = func(scope *txn.Scope) (replicate.PullStats, error) {
			return replicate.PullContentOnly(ctx, scope, src, commit)
		}
	}

	var stats replicate.PullStats
	_, err = txn.Do(ctx, dest, mon, func(scope *txn.Scope) (err error) {
		stats, err = pull(scope)
		return
	})
	if err != nil {
		return nil, "", err
	}
	return stats, fmt.Sprintf("%s: %d copied, %d skipped\n", commit, stats.Copied, stats.Skipped), nil
}

func executePkgcacheList(cli baseCLI) (interface{}, string, error) {
	store, err := pkgcache.Open(cli.pkgcachePath())
	if err != nil {
		return nil, "", err
	}
	entries, err := pkgcache.NewIndex(store).List()
	if err != nil {
		return nil, "", err
	}
	var sb strings.Builder
	for _, ent := range entries {
		fmt.Fprintf(&sb, "%s %s\n", ent.Identity, ent.Commit)
	}
	return entries, sb.String(), nil
}

func executeBranchEncode(cli baseCLI) (interface{}, string, error) {
	id, err := nevra.Parse(cli.BranchCLI.Nevra)
	if err != nil {
		return nil, "", err
	}
	branch, err := nevra.EncodeBranch(id)
	if err != nil {
		return nil, "", err
	}
	return branch, branch + "\n", nil
}

func executeBranchDecode(cli baseCLI) (interface{}, string, error) {
	s, err := nevra.BranchToNevra(cli.BranchCLI.Branch)
	if err != nil {
		return nil, "", err
	}
	return s, s + "\n", nil
}

func executeNextVersion(cli baseCLI) (interface{}, string, error) {
	if cli.VersionCLI.Parent == "" {
		v, err := version.ForChild(nil, "", cli.VersionCLI.Prefix)
		if err != nil {
			return nil, "", err
		}
		return v, v + "\n", nil
	}
	store, err := openRepo(cli, false)
	if err != nil {
		return nil, "", err
	}
	parent, err := walker.Resolve(store, cli.VersionCLI.Parent)
	if err != nil {
		return nil, "", err
	}
	v, err := version.ForChild(store, parent, cli.VersionCLI.Prefix)
	if err != nil {
		return nil, "", err
	}
	return v, v + "\n", nil
}
