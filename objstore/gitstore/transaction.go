package gitstore

import (
	"fmt"
	"strings"

	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-git.v4/plumbing"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/objstore"
)

/*
	Pending state of an open transaction.

	Objects are buffered in memory and flushed to the underlying storage in
	write order on commit; since callers write leaves before the objects that
	reference them, the flush never creates a dangling reference either.
	Ref updates are applied only after every object is durable.
*/
type transaction struct {
	objects map[plumbing.Hash]objstore.Object
	order   []plumbing.Hash
	refs    map[string]plumbing.Hash
	refList []string
	lock    *repoLock
}

func (s *Store) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

func (s *Store) PrepareTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return Errorf(pkgtree.ErrTransactionConflict, "a transaction is already open on this store")
	}
	var lock *repoLock
	if s.lockPath != "" {
		var err error
		if lock, err = acquireLock(s.lockPath); err != nil {
			return err
		}
	}
	s.tx = &transaction{
		objects: map[plumbing.Hash]objstore.Object{},
		refs:    map[string]plumbing.Hash{},
		lock:    lock,
	}
	return nil
}

func (s *Store) AbortTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.tx
	if tx == nil {
		return nil
	}
	s.tx = nil
	return tx.lock.release()
}

/*
	Commit the open transaction: flush pending objects, then apply ref updates.

	If anything fails, every ref already updated is put back as it was, and
	the error is of category `pkgtree.ErrCommitFailed`; objects flushed by
	then remain in storage, but unreferenced.  Once the refs are published,
	the commit has happened: a failure to release the repository lock
	afterwards is reported in the stats' Warnings rather than as an error.
*/
func (s *Store) CommitTransaction() (stats objstore.TransactionStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.tx
	if tx == nil {
		return stats, Errorf(pkgtree.ErrNoActiveTransaction, "no transaction is open")
	}
	s.tx = nil
	defer func() {
		if rerr := tx.lock.release(); rerr != nil && err == nil {
			stats.Warnings = append(stats.Warnings, rerr.Error())
		}
	}()

	for _, h := range tx.order {
		switch err := s.storer.HasEncodedObject(h); err {
		case nil:
			continue
		case plumbing.ErrObjectNotFound:
		default:
			return stats, Errorf(pkgtree.ErrCommitFailed, "commit failed checking for object %s: %s", h, err)
		}
		if _, err := s.storer.SetEncodedObject(toMemoryObject(tx.objects[h])); err != nil {
			return stats, Errorf(pkgtree.ErrCommitFailed, "commit failed writing object %s: %s", h, err)
		}
		stats.ObjectsWritten++
	}

	// Remember every ref's previous value, so a failure partway can put them all back.
	type undo struct {
		name plumbing.ReferenceName
		prev *plumbing.Reference
	}
	var undos []undo
	rollback := func(cause string) error {
		var failed []string
		for i := len(undos) - 1; i >= 0; i-- {
			var rerr error
			if undos[i].prev == nil {
				rerr = s.storer.RemoveReference(undos[i].name)
			} else {
				rerr = s.storer.SetReference(undos[i].prev)
			}
			if rerr != nil {
				failed = append(failed, fmt.Sprintf("%s: %s", undos[i].name, rerr))
			}
		}
		if len(failed) == 0 {
			return Errorf(pkgtree.ErrCommitFailed, "commit failed %s", cause)
		}
		return ErrorDetailed(pkgtree.ErrCommitFailed,
			fmt.Sprintf("commit failed %s, and restoring refs failed too (%s)", cause, strings.Join(failed, "; ")),
			map[string]string{"unrestored": strings.Join(failed, "; ")})
	}
	for _, name := range tx.refList {
		full := plumbing.ReferenceName(refPrefix + name)
		prev, err := s.storer.Reference(full)
		switch {
		case err == plumbing.ErrReferenceNotFound:
			prev = nil
		case err != nil:
			return objstore.TransactionStats{}, rollback(fmt.Sprintf("reading ref %q: %s", name, err))
		}
		if err := s.storer.SetReference(plumbing.NewHashReference(full, tx.refs[name])); err != nil {
			return objstore.TransactionStats{}, rollback(fmt.Sprintf("updating ref %q: %s", name, err))
		}
		undos = append(undos, undo{full, prev})
		stats.RefsUpdated++
	}
	return stats, nil
}

// requireTx must be called with the mutex held.
func (s *Store) requireTx() error {
	if s.tx == nil {
		return Errorf(pkgtree.ErrNoActiveTransaction, "writes require an open transaction")
	}
	return nil
}

func (s *Store) WriteObject(obj objstore.Object) (api.ObjectID, error) {
	if kindToType(obj.Kind) == plumbing.InvalidObject {
		return "", Errorf(pkgtree.ErrUsage, "cannot write object of unknown kind %q", obj.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeObject(obj)
}

func (s *Store) writeObject(obj objstore.Object) (api.ObjectID, error) {
	if err := s.requireTx(); err != nil {
		return "", err
	}
	h := plumbing.ComputeHash(kindToType(obj.Kind), obj.Data)
	present, err := s.hasObject(h)
	if err != nil {
		return "", err
	}
	if !present {
		data := make([]byte, len(obj.Data))
		copy(data, obj.Data)
		s.tx.objects[h] = objstore.Object{Kind: obj.Kind, Data: data}
		s.tx.order = append(s.tx.order, h)
	}
	return hashToID(h), nil
}

func (s *Store) WriteBlob(data []byte) (api.ObjectID, error) {
	return s.WriteObject(objstore.Object{Kind: objstore.KindBlob, Data: data})
}

/*
	Write a tree of the given entries.  Order of the entries doesn't matter.

	Every entry's target must already be present (or pending in the same
	transaction), and must be a tree if and only if the entry is a directory;
	otherwise the error is of category `pkgtree.ErrObjectNotFound` or `pkgtree.ErrUsage`.
*/
func (s *Store) WriteTree(entries []objstore.TreeEntry) (api.ObjectID, error) {
	obj, err := encodeTree(entries)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTx(); err != nil {
		return "", err
	}
	for _, ent := range entries {
		target, err := s.readObject(ent.ID, plumbing.NewHash(string(ent.ID)))
		if err != nil {
			return "", err
		}
		if (target.Kind == objstore.KindTree) != ent.Kind.IsDir() {
			return "", Errorf(pkgtree.ErrUsage, "tree entry %q of kind %s points at a %s", ent.Name, ent.Kind, target.Kind)
		}
	}
	return s.writeObject(obj)
}

/*
	Write a commit.  The tree, and the parent if any, must already be present.
*/
func (s *Store) WriteCommit(c objstore.Commit) (api.CommitID, error) {
	obj, err := encodeCommit(c)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTx(); err != nil {
		return "", err
	}
	if err := s.requireKind(c.Tree, objstore.KindTree); err != nil {
		return "", err
	}
	if c.Parent != "" {
		if err := s.requireKind(c.Parent, objstore.KindCommit); err != nil {
			return "", err
		}
	}
	return s.writeObject(obj)
}

func (s *Store) requireKind(id api.ObjectID, kind objstore.ObjectKind) error {
	obj, err := s.readObject(id, plumbing.NewHash(string(id)))
	if err != nil {
		return err
	}
	if obj.Kind != kind {
		return Errorf(pkgtree.ErrUsage, "object %s is a %s, not a %s", id.Short(), obj.Kind, kind)
	}
	return nil
}

/*
	Point a ref at a commit.  The commit must already be present.
	The update becomes visible when the transaction commits.
*/
func (s *Store) SetRef(name string, commit api.CommitID) error {
	if err := checkRefName(name); err != nil {
		return err
	}
	h, err := idToHash(commit)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTx(); err != nil {
		return err
	}
	if err := s.requireKind(commit, objstore.KindCommit); err != nil {
		return err
	}
	if _, exists := s.tx.refs[name]; !exists {
		s.tx.refList = append(s.tx.refList, name)
	}
	s.tx.refs[name] = h
	return nil
}

func checkRefName(name string) error {
	if name == "" {
		return Errorf(pkgtree.ErrUsage, "ref name may not be empty")
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return Errorf(pkgtree.ErrUsage, "ref name %q has an empty or dot segment", name)
		}
	}
	return nil
}
