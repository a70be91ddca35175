/*
	Package objstore defines the capability interface of a content-addressed
	object store, as consumed by the rest of pkgtree.

	A store holds immutable objects named by the hash of their serial form
	(blobs of file content, trees, and commits) plus a set of mutable refs
	pointing at commits.  Writes are only permitted inside a transaction,
	and become visible to readers all at once when the transaction commits.

	See the `gitstore` subpackage for the concrete implementation.
*/
package objstore

import (
	"sort"
	"time"

	"github.com/polydawn/pkgtree/api"
)

type ObjectKind string

const (
	KindBlob   ObjectKind = "blob"
	KindTree   ObjectKind = "tree"
	KindCommit ObjectKind = "commit"
)

// Object is the raw serial form of one stored object.
type Object struct {
	Kind ObjectKind
	Data []byte
}

type EntryKind string

const (
	EntryDir        EntryKind = "dir"
	EntryFile       EntryKind = "file"
	EntryExecutable EntryKind = "exec"
	EntrySymlink    EntryKind = "symlink"
)

// IsDir is true if the entry refers to a tree rather than a blob.
func (k EntryKind) IsDir() bool { return k == EntryDir }

type TreeEntry struct {
	Name string
	Kind EntryKind
	ID   api.ObjectID
}

/*
	Tree is a decoded tree object.

	Entries are in the store's canonical order, which is not necessarily
	plain byte order of the names; use SortedByName when merging.
*/
type Tree struct {
	ID      api.ObjectID
	Entries []TreeEntry
}

// SortedByName returns a copy of the entries sorted by plain byte order of their names.
func (t Tree) SortedByName() []TreeEntry {
	ents := make([]TreeEntry, len(t.Entries))
	copy(ents, t.Entries)
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name < ents[j].Name })
	return ents
}

/*
	Commit is a decoded commit object.

	Parent is empty for a root commit.  When handed to WriteCommit,
	the ID field is ignored (it's computed).
*/
type Commit struct {
	ID        api.CommitID
	Parent    api.CommitID
	Tree      api.ObjectID
	Subject   string
	Timestamp time.Time
	Metadata  api.Metadata
}

/*
	Codec is the store's object format: how objects hash, and how
	commits and trees are decoded from their raw form.

	Decoding does not check the hash; call Checksum for that.
*/
type Codec interface {
	Checksum(obj Object) api.ObjectID
	DecodeCommit(id api.CommitID, obj Object) (Commit, error)
	DecodeTree(id api.ObjectID, obj Object) (Tree, error)
}

/*
	Reader is the read half of a store.

	Reads during an open transaction see that transaction's own pending
	writes; other handles on the same repository do not, until commit.

	Errors are of categories:

	  - `pkgtree.ErrObjectNotFound` -- if an object is absent
	  - `pkgtree.ErrStoreCorrupt` -- if an object is present but undecodable or of the wrong kind
	  - `pkgtree.ErrIoFailure` -- for lower level read failures
*/
type Reader interface {
	Codec

	ReadObject(id api.ObjectID) (Object, error)
	HasObject(id api.ObjectID) (bool, error)
	ReadCommit(id api.CommitID) (Commit, error)
	ReadTree(id api.ObjectID) (Tree, error)

	// ResolveRef returns false if no such ref exists; that is not an error.
	ResolveRef(name string) (api.CommitID, bool, error)
	// ListRefs returns every ref whose name begins with prefix, sorted by name.
	ListRefs(prefix string) ([]Ref, error)
}

type Ref struct {
	Name   string
	Commit api.CommitID
}

/*
	Store is a Reader which can also be written to.

	All of the Write* methods and SetRef require an open transaction,
	and return errors of category `pkgtree.ErrNoActiveTransaction` otherwise.
	Writing an object which already exists is a successful no-op.

	The transaction methods:

	  - PrepareTransaction: `pkgtree.ErrTransactionConflict` if one is already open
	    (on this handle, or on the repository by another process);
	    `pkgtree.ErrStoreUnavailable` if it cannot be started.
	  - CommitTransaction: makes all pending writes visible at once, then ends
	    the transaction; `pkgtree.ErrCommitFailed` leaves nothing visible.
	    The transaction is ended whether or not commit succeeds.
	  - AbortTransaction: discards all pending writes and ends the transaction.
	    Aborting when no transaction is open is a no-op.
*/
type Store interface {
	Reader

	WriteObject(obj Object) (api.ObjectID, error)
	WriteBlob(data []byte) (api.ObjectID, error)
	WriteTree(entries []TreeEntry) (api.ObjectID, error)
	WriteCommit(commit Commit) (api.CommitID, error)
	SetRef(name string, commit api.CommitID) error

	PrepareTransaction() error
	CommitTransaction() (TransactionStats, error)
	AbortTransaction() error
	InTransaction() bool
}

// TransactionStats counts what a committed transaction made visible.
type TransactionStats struct {
	ObjectsWritten int `refmt:"objectsWritten"`
	RefsUpdated    int `refmt:"refsUpdated"`

	// Problems after the commit took effect, such as failing to release a lock.
	Warnings []string `refmt:"warnings,omitempty"`
}
