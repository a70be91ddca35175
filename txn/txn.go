/*
	Package txn scopes a store transaction to a block of code.

	Open a Scope and immediately `defer scope.Close()`; call Commit when all
	writes are done.  Every exit path that skips Commit (an early error return,
	a panic, a cancelled context) aborts instead, so partial work is never
	published.  Or use Do, which does all of that around a function.
*/
package txn

import (
	"context"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/log"
	"github.com/polydawn/pkgtree/objstore"
)

type state int

const (
	stateOpen state = iota
	stateCommitted
	stateAborted
)

/*
	Scope owns the open transaction of one store handle until it ends.

	A Scope is not safe for concurrent use; neither is the store it wraps.
*/
type Scope struct {
	store objstore.Store
	mon   pkgtree.Monitor
	state state
}

type CommitResult = objstore.TransactionStats

/*
	Open a transaction on the store.

	May return errors of category:

	  - `pkgtree.ErrTransactionConflict` -- if a transaction is already open on the store
	  - `pkgtree.ErrStoreUnavailable` -- if the store cannot start one
*/
func Open(store objstore.Store, mon pkgtree.Monitor) (_ *Scope, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	if err := store.PrepareTransaction(); err != nil {
		switch Category(err) {
		case pkgtree.ErrTransactionConflict, pkgtree.ErrStoreUnavailable:
			return nil, err
		default:
			return nil, Errorf(pkgtree.ErrStoreUnavailable, "cannot start transaction: %s", err)
		}
	}
	return &Scope{store: store, mon: mon}, nil
}

// Store returns the store the scope's transaction is open on.  Writes through it join the transaction.
func (s *Scope) Store() objstore.Store { return s.store }

// Monitor returns the monitor the scope reports to.
func (s *Scope) Monitor() pkgtree.Monitor { return s.mon }

// Active is true until the scope is committed or closed.  Nil scopes are never active.
func (s *Scope) Active() bool { return s != nil && s.state == stateOpen }

/*
	Commit the transaction, publishing every write made in it at once.

	The scope is ended either way.

	May return errors of category:

	  - `pkgtree.ErrNoActiveTransaction` -- if the scope already ended
	  - `pkgtree.ErrCommitFailed` -- if the store could not commit; nothing was published
*/
func (s *Scope) Commit() (_ CommitResult, err error) {
	defer RequireErrorHasCategory(&err, pkgtree.ErrorCategory(""))
	if !s.Active() {
		return CommitResult{}, Errorf(pkgtree.ErrNoActiveTransaction, "transaction scope already ended")
	}
	s.state = stateCommitted
	stats, err := s.store.CommitTransaction()
	if err != nil {
		if Category(err) != pkgtree.ErrCommitFailed {
			err = Errorf(pkgtree.ErrCommitFailed, "commit failed: %s", err)
		}
		// The store ends its transaction even on failure, but make sure of it.
		if aerr := s.store.AbortTransaction(); aerr != nil {
			log.AbortFailed(s.mon, aerr, "commit failed")
		}
		return CommitResult{}, err
	}
	for _, w := range stats.Warnings {
		log.CommitWarning(s.mon, w)
	}
	log.TransactionCommitted(s.mon, stats.ObjectsWritten, stats.RefsUpdated)
	return stats, nil
}

/*
	Close aborts the transaction unless it was committed.

	Idempotent, and safe to defer unconditionally.  Errors from the abort
	are reported to the monitor and otherwise ignored: by the time a scope
	is closed without committing, the caller already has a better error.
*/
func (s *Scope) Close() {
	s.Abort("scope closed without commit")
}

/*
	Abort ends the scope without committing, discarding every write made in it.

	Operations which find the content they were writing untrustworthy call
	this before returning their error, so that no later Commit can publish
	any of it.  A no-op if the scope already ended.
*/
func (s *Scope) Abort(reason string) {
	if !s.Active() {
		return
	}
	s.state = stateAborted
	s.abort(reason)
}

func (s *Scope) abort(reason string) {
	if err := s.store.AbortTransaction(); err != nil {
		log.AbortFailed(s.mon, err, reason)
		return
	}
	log.TransactionAborted(s.mon, reason)
}

/*
	Do runs fn inside a transaction on the store, and commits if fn returns nil.

	If fn returns an error or panics, or ctx is done by the time fn returns,
	the transaction is aborted.  Panics are re-raised after the abort.
	Errors from fn are returned unchanged; otherwise, a done context yields
	an error of category `pkgtree.ErrCancelled`.
*/
func Do(ctx context.Context, store objstore.Store, mon pkgtree.Monitor, fn func(*Scope) error) (CommitResult, error) {
	if ctx.Err() != nil {
		return CommitResult{}, Errorf(pkgtree.ErrCancelled, "cancelled before transaction began: %s", ctx.Err())
	}
	scope, err := Open(store, mon)
	if err != nil {
		return CommitResult{}, err
	}
	defer scope.Close()

	if err := fn(scope); err != nil {
		return CommitResult{}, err
	}
	if ctx.Err() != nil {
		return CommitResult{}, Errorf(pkgtree.ErrCancelled, "cancelled: %s", ctx.Err())
	}
	return scope.Commit()
}
