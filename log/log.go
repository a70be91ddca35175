/*
	Helper functions for emitting structured logs to a pkgtree.Monitor.

	These functions encompass the common lifecycle events of transactions
	and replication, and using them A) saves typing and B) keeps the common
	stuff formatted in a common way.
	Callers can of course also write their own log events raw; it is freetext.
*/
package log

import (
	"fmt"
	"time"

	"github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
)

// Raised when an abort run by a transaction scope's cleanup fails.  Never fatal: the caller already has a better error.
func AbortFailed(mon pkgtree.Monitor, err error, reason string) {
	mon.Send(pkgtree.Event{
		Log: &pkgtree.Event_Log{
			Time:  time.Now(),
			Level: pkgtree.LogWarn,
			Msg:   fmt.Sprintf("abort of transaction failed: %s", err),
			Detail: [][2]string{
				{"reason", reason},
				{"category", fmt.Sprintf("%v", errcat.Category(err))},
				{"error", err.Error()},
			},
		},
	})
}

func TransactionAborted(mon pkgtree.Monitor, reason string) {
	mon.Send(pkgtree.Event{
		Log: &pkgtree.Event_Log{
			Time:   time.Now(),
			Level:  pkgtree.LogInfo,
			Msg:    "transaction aborted",
			Detail: [][2]string{{"reason", reason}},
		},
	})
}

// Raised for trouble after a commit already took effect.  The commit still stands.
func CommitWarning(mon pkgtree.Monitor, warning string) {
	mon.Send(pkgtree.Event{
		Log: &pkgtree.Event_Log{
			Time:  time.Now(),
			Level: pkgtree.LogWarn,
			Msg:   "transaction committed with warnings: " + warning,
		},
	})
}

func TransactionCommitted(mon pkgtree.Monitor, objects, refs int) {
	mon.Send(pkgtree.Event{
		Log: &pkgtree.Event_Log{
			Time:  time.Now(),
			Level: pkgtree.LogInfo,
			Msg:   fmt.Sprintf("transaction committed: %d objects, %d refs", objects, refs),
		},
	})
}

// Progress of a content pull.  'total' may be zero while the closure is still being discovered.
func ObjectCopied(mon pkgtree.Monitor, commit api.CommitID, obj api.ObjectID, done, total int) {
	mon.Send(pkgtree.Event{
		Progress: &pkgtree.Event_Progress{
			Phase:     "pull " + commit.Short(),
			Desc:      obj.String(),
			TotalProg: done,
			TotalWork: total,
		},
	})
}

func PullFinished(mon pkgtree.Monitor, commit api.CommitID, copied, skipped int) {
	mon.Send(pkgtree.Event{
		Log: &pkgtree.Event_Log{
			Time:  time.Now(),
			Level: pkgtree.LogInfo,
			Msg:   fmt.Sprintf("pulled content of %s: %d objects copied, %d already present", commit.Short(), copied, skipped),
			Detail: [][2]string{
				{"commit", commit.String()},
			},
		},
	})
}
