/*
	Error categories, exit codes, and monitoring types of pkgtree.

	Every error returned by the pkgtree packages carries one of the
	ErrorCategory values below (see `github.com/warpfork/go-errcat`),
	and every category maps onto a process exit code for the CLI.
*/
package pkgtree

import (
	"time"

	"github.com/warpfork/go-errcat"
)

type ErrorCategory string
type ExitCode int

const (
	ExitSuccess                                             = ExitCode(0)
	ExitUsage, ErrUsage                                     = ExitCode(1), ErrorCategory("pkgtree-usage-error")                // Some piece of user input to a command was invalid and unrunnable.
	ExitPanic                                               = ExitCode(2)                                                      // Placeholder.  '2' happens when golang exits due to panic.
	ExitMalformedBranch, ErrMalformedBranch                 = ExitCode(10), ErrorCategory("pkgtree-malformed-branch")          // A cache branch name did not decode to a package identity.
	ExitInvalidChecksumFormat, ErrInvalidChecksumFormat     = ExitCode(11), ErrorCategory("pkgtree-invalid-checksum-format")   // A "<sha256>:<nevra>" composite was malformed.
	ExitMalformedNevra, ErrMalformedNevra                   = ExitCode(12), ErrorCategory("pkgtree-malformed-nevra")           // A NEVRA string could not be parsed.
	ExitTransactionConflict, ErrTransactionConflict         = ExitCode(20), ErrorCategory("pkgtree-transaction-conflict")      // A transaction is already open on the store.  A caller sequencing bug; never retried.
	ExitStoreUnavailable, ErrStoreUnavailable               = ExitCode(21), ErrorCategory("pkgtree-store-unavailable")         // The store could not be opened or prepared.
	ExitCommitFailed, ErrCommitFailed                       = ExitCode(22), ErrorCategory("pkgtree-commit-failed")             // Finalizing a transaction failed; nothing from it is visible.
	ExitNoActiveTransaction, ErrNoActiveTransaction         = ExitCode(23), ErrorCategory("pkgtree-no-active-transaction")     // A write was attempted outside of a transaction.
	ExitObjectNotFound, ErrObjectNotFound                   = ExitCode(30), ErrorCategory("pkgtree-object-not-found")          // Object 404 in the store being read.
	ExitRefNotFound, ErrRefNotFound                         = ExitCode(31), ErrorCategory("pkgtree-ref-not-found")             // A ref name or hash did not resolve to a commit.
	ExitStoreCorrupt, ErrStoreCorrupt                       = ExitCode(32), ErrorCategory("pkgtree-store-corrupt")             // Objects in the store could not be decoded or form an impossible graph.
	ExitObjectMissingInSource, ErrObjectMissingInSource     = ExitCode(40), ErrorCategory("pkgtree-object-missing-in-source")  // Replication source lacks an object its own graph references.  Corruption; fatal.
	ExitChecksumMismatch, ErrChecksumMismatch               = ExitCode(41), ErrorCategory("pkgtree-checksum-mismatch")         // Object content does not hash to its name.  Corruption; fatal.
	ExitIoFailure, ErrIoFailure                             = ExitCode(42), ErrorCategory("pkgtree-io-failure")                // Transient read/write failure.  Replication may be retried as a whole.
	ExitDisjointHistory, ErrDisjointHistory                 = ExitCode(50), ErrorCategory("pkgtree-disjoint-history")          // Two refs do not share an ancestry chain.
	ExitCorruptLayeringMetadata, ErrCorruptLayeringMetadata = ExitCode(60), ErrorCategory("pkgtree-corrupt-layering-metadata") // Layering annotations on a commit are malformed.  Never partially reported.
	ExitCancelled, ErrCancelled                             = ExitCode(8), ErrorCategory("pkgtree-cancelled")                  // The operation timed out or was cancelled.
	ExitTODO                                                = ExitCode(254)                                                    // This exit code should be replaced with something more specific.
)

var exitCodes = map[ErrorCategory]ExitCode{
	ErrUsage:                   ExitUsage,
	ErrMalformedBranch:         ExitMalformedBranch,
	ErrInvalidChecksumFormat:   ExitInvalidChecksumFormat,
	ErrMalformedNevra:          ExitMalformedNevra,
	ErrTransactionConflict:     ExitTransactionConflict,
	ErrStoreUnavailable:        ExitStoreUnavailable,
	ErrCommitFailed:            ExitCommitFailed,
	ErrNoActiveTransaction:     ExitNoActiveTransaction,
	ErrObjectNotFound:          ExitObjectNotFound,
	ErrRefNotFound:             ExitRefNotFound,
	ErrStoreCorrupt:            ExitStoreCorrupt,
	ErrObjectMissingInSource:   ExitObjectMissingInSource,
	ErrChecksumMismatch:        ExitChecksumMismatch,
	ErrIoFailure:               ExitIoFailure,
	ErrDisjointHistory:         ExitDisjointHistory,
	ErrCorruptLayeringMetadata: ExitCorruptLayeringMetadata,
	ErrCancelled:               ExitCancelled,
}

/*
	Return the exit code for an error, based on its category.

	Nil is ExitSuccess.  Errors with no category, or with a category
	from somewhere other than this package, are ExitTODO.
*/
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	category, ok := errcat.Category(err).(ErrorCategory)
	if !ok {
		return ExitTODO
	}
	if code, ok := exitCodes[category]; ok {
		return code
	}
	return ExitTODO
}

// Reverse of ExitCodeFor.  Unknown codes yield the empty category.
func CategoryForExitCode(code ExitCode) ErrorCategory {
	for cat, c := range exitCodes {
		if c == code {
			return cat
		}
	}
	return ErrorCategory("")
}

/*
	Monitoring configuration, and the message types sent to it.
*/
type (
	/*
		Slot for the channel the caller wishes events to be sent to.

		A nil channel disables all reporting.
		Operations never close the channel: one monitor is commonly shared
		by several calls in a row (a transaction and the pulls inside it).
	*/
	Monitor struct {
		Chan chan<- Event
	}

	/*
		A "union" type of all the kinds of event that may be generated.
		Exactly one field is set.
	*/
	Event struct {
		Log      *Event_Log      `refmt:"log,omitempty"`
		Progress *Event_Progress `refmt:"prog,omitempty"`
		Result   *Event_Result   `refmt:"result,omitempty"`
	}

	Event_Log struct {
		Time   time.Time   `refmt:"t"`
		Level  LogLevel    `refmt:"lvl"`
		Msg    string      `refmt:"msg"`
		Detail [][2]string `refmt:"detail,omitempty"`
	}

	/*
		Notifications about progress updates.

		'Phase' will typically remain the same for many events in a row,
		while 'Desc' names the specific item just handled.
		'TotalWork' may be zero when the total is not yet known.
	*/
	Event_Progress struct {
		Phase     string `refmt:"phase"`
		Desc      string `refmt:"desc"`
		TotalProg int    `refmt:"totalProg"`
		TotalWork int    `refmt:"totalWork"`
	}

	/*
		The final message of a CLI invocation in json mode.
		Value is whatever the command produced; Error is set instead on failure.
	*/
	Event_Result struct {
		Value interface{} `refmt:"value,omitempty"`
		Error *Error      `refmt:"error,omitempty"`
	}

	// Serializable flattening of an errcat error.
	Error struct {
		Category ErrorCategory     `refmt:"category"`
		Message  string            `refmt:"message"`
		Details  map[string]string `refmt:"details,omitempty"`
	}
)

type LogLevel int8

const (
	LogError = LogLevel(4)
	LogWarn  = LogLevel(3)
	LogInfo  = LogLevel(2)
	LogDebug = LogLevel(1)
)

func (lvl LogLevel) String() string {
	switch lvl {
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Send an event to the monitor, if it has a channel.  Blocks until received.
func (mon Monitor) Send(ev Event) {
	if mon.Chan == nil {
		return
	}
	mon.Chan <- ev
}

// Flatten any error into the serializable Error form.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Message: err.Error()}
	if cat, ok := errcat.Category(err).(ErrorCategory); ok {
		e.Category = cat
	}
	if ec, ok := err.(errcat.Error); ok {
		e.Message = ec.Message()
		e.Details = ec.Details()
	}
	return e
}
