/*
	Package replicate copies commits' content between stores.

	Pulls run inside a transaction on the destination which the caller opened
	and will commit, so that a pull can be composed atomically with other
	writes (such as pointing a cache branch at the pulled commit).
*/
package replicate

import (
	"context"
	"fmt"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/log"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore"
	"github.com/polydawn/pkgtree/txn"
)

// PullStats counts the objects a pull handled.
type PullStats struct {
	Copied  int `refmt:"copied"`
	Skipped int `refmt:"skipped"` // already present in the destination, with everything beneath them
}

/*
	Copy one commit's content from src into the scope's store: the commit
	object and every tree and blob reachable from it that the destination
	lacks.  Parent commits and refs are not copied.

	Objects are written children first, and the commit last.  A subtree
	whose root is already present in the destination is assumed complete
	and not descended into; stores only ever receive complete subtrees,
	since nothing is written before its children.

	Every object read from src is re-hashed before it is written.
	Pulling the same commit again is a no-op.

	Corruption in src and cancellation abort the scope before returning,
	so nothing pulled so far can be committed.  An `ErrIoFailure` leaves
	the scope open, and the pull may be retried in it.

	May return errors of category:

	  - `pkgtree.ErrNoActiveTransaction` -- if scope is nil or already ended
	  - `pkgtree.ErrObjectMissingInSource` -- if src lacks an object its own graph references
	  - `pkgtree.ErrChecksumMismatch` -- if an object in src does not hash to its ID
	  - `pkgtree.ErrStoreCorrupt` -- if an object in src is not the kind its referrer claims, or undecodable
	  - `pkgtree.ErrIoFailure` -- for other read or write failures; retrying the pull is safe
	  - `pkgtree.ErrCancelled` -- if ctx is done; checked between objects
*/
func PullContentOnly(ctx context.Context, scope *txn.Scope, src objstore.Reader, commit api.CommitID) (_ PullStats, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	if !scope.Active() {
		return PullStats{}, Errorf(pkgtree.ErrNoActiveTransaction, "pulling content requires an open transaction on the destination")
	}
	p := &puller{
		ctx:    ctx,
		src:    src,
		dest:   scope.Store(),
		mon:    scope.Monitor(),
		commit: commit,
	}
	if err := p.pullCommit(); err != nil {
		switch Category(err) {
		case pkgtree.ErrObjectMissingInSource, pkgtree.ErrChecksumMismatch, pkgtree.ErrStoreCorrupt, pkgtree.ErrCancelled:
			scope.Abort("pull of " + commit.Short() + " failed: " + err.Error())
		}
		return p.stats, err
	}
	log.PullFinished(p.mon, commit, p.stats.Copied, p.stats.Skipped)
	return p.stats, nil
}

/*
	Pull a package's commit content, then point the package's cache branch
	at it, all in the scope's transaction.

	Errors are as for PullContentOnly, plus `pkgtree.ErrUsage` if the
	identity cannot be encoded as a branch name.  Categorised refusals from
	the store when setting the branch are returned as they are; anything
	else from it is an `pkgtree.ErrIoFailure`.
*/
func PullPackage(ctx context.Context, scope *txn.Scope, src objstore.Reader, id api.PackageIdentity, commit api.CommitID) (PullStats, error) {
	branch, err := nevra.EncodeBranch(id)
	if err != nil {
		return PullStats{}, err
	}
	stats, err := PullContentOnly(ctx, scope, src, commit)
	if err != nil {
		return stats, err
	}
	if err := scope.Store().SetRef(branch, commit); err != nil {
		switch Category(err) {
		case pkgtree.ErrUsage, pkgtree.ErrNoActiveTransaction, pkgtree.ErrObjectNotFound:
			return stats, err
		}
		return stats, ErrorDetailed(pkgtree.ErrIoFailure,
			fmt.Sprintf("cannot set cache branch for %s: %s", id, err),
			map[string]string{"branch": branch, "commit": commit.String()})
	}
	return stats, nil
}

type puller struct {
	ctx    context.Context
	src    objstore.Reader
	dest   objstore.Store
	mon    pkgtree.Monitor
	commit api.CommitID
	stats  PullStats
}

func (p *puller) pullCommit() error {
	obj, err := p.read(p.commit, objstore.KindCommit)
	if err != nil {
		return err
	}
	c, err := p.src.DecodeCommit(p.commit, obj)
	if err != nil {
		return p.sourceCorrupt(p.commit, err)
	}
	if err := p.pullTree(c.Tree); err != nil {
		return err
	}
	if present, err := p.present(p.commit); err != nil || present {
		return err
	}
	return p.write(p.commit, obj)
}

func (p *puller) pullTree(id api.ObjectID) error {
	if present, err := p.present(id); err != nil || present {
		return err
	}
	obj, err := p.read(id, objstore.KindTree)
	if err != nil {
		return err
	}
	tree, err := p.src.DecodeTree(id, obj)
	if err != nil {
		return p.sourceCorrupt(id, err)
	}
	for _, ent := range tree.Entries {
		if ent.Kind.IsDir() {
			err = p.pullTree(ent.ID)
		} else {
			err = p.pullBlob(ent.ID)
		}
		if err != nil {
			return err
		}
	}
	return p.write(id, obj)
}

func (p *puller) pullBlob(id api.ObjectID) error {
	if present, err := p.present(id); err != nil || present {
		return err
	}
	obj, err := p.read(id, objstore.KindBlob)
	if err != nil {
		return err
	}
	return p.write(id, obj)
}

func (p *puller) present(id api.ObjectID) (bool, error) {
	has, err := p.dest.HasObject(id)
	if err != nil {
		return false, p.ioFailure(id, "checking destination", err)
	}
	if has {
		p.stats.Skipped++
	}
	return has, nil
}

// read fetches an object from src and verifies its hash and kind.
func (p *puller) read(id api.ObjectID, kind objstore.ObjectKind) (objstore.Object, error) {
	if err := p.ctx.Err(); err != nil {
		return objstore.Object{}, ErrorDetailed(pkgtree.ErrCancelled,
			"pull of "+p.commit.Short()+" cancelled: "+err.Error(),
			p.details(id))
	}
	obj, err := p.src.ReadObject(id)
	switch {
	case err == nil:
	case Category(err) == pkgtree.ErrObjectNotFound:
		return objstore.Object{}, ErrorDetailed(pkgtree.ErrObjectMissingInSource,
			"source is missing object "+id.Short()+" referenced by commit "+p.commit.Short(),
			p.details(id))
	default:
		return objstore.Object{}, p.ioFailure(id, "reading source", err)
	}
	if actual := p.src.Checksum(obj); actual != id {
		details := p.details(id)
		details["actual"] = actual.String()
		return objstore.Object{}, ErrorDetailed(pkgtree.ErrChecksumMismatch,
			"object "+id.Short()+" in source hashes to "+actual.Short(),
			details)
	}
	if obj.Kind != kind {
		return objstore.Object{}, p.sourceCorrupt(id, fmt.Errorf("expected a %s, found a %s", kind, obj.Kind))
	}
	return obj, nil
}

func (p *puller) write(id api.ObjectID, obj objstore.Object) error {
	written, err := p.dest.WriteObject(obj)
	if err != nil {
		return p.ioFailure(id, "writing destination", err)
	}
	if written != id {
		return p.ioFailure(id, "writing destination", fmt.Errorf("destination named the object %s", written))
	}
	p.stats.Copied++
	log.ObjectCopied(p.mon, p.commit, id, p.stats.Copied, 0)
	return nil
}

func (p *puller) details(id api.ObjectID) map[string]string {
	return map[string]string{
		"commit": p.commit.String(),
		"object": id.String(),
	}
}

func (p *puller) ioFailure(id api.ObjectID, doing string, err error) error {
	return ErrorDetailed(pkgtree.ErrIoFailure,
		fmt.Sprintf("pull of %s failed %s for object %s: %s", p.commit.Short(), doing, id.Short(), err),
		p.details(id))
}

// Objects which hash correctly but don't decode as what their referrer says they are.
func (p *puller) sourceCorrupt(id api.ObjectID, err error) error {
	return ErrorDetailed(pkgtree.ErrStoreCorrupt,
		fmt.Sprintf("object %s in source is not a valid object: %s", id.Short(), err),
		p.details(id))
}
