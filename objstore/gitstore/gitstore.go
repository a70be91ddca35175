/*
	Package gitstore implements objstore.Store on go-git's object storage.

	Repositories may live in memory (for tests and scratch work), on any
	billy filesystem, or in a directory on the host.  Host repositories are
	plain bare git repositories, so ordinary git tooling can inspect them.

	Refs named by pkgtree (e.g. "pkgtree/pkg/foo/...") are stored as
	"refs/heads/<name>".
*/
package gitstore

import (
	"os"
	"sort"
	"strings"
	"sync"

	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"
	srcd_git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/cache"
	"gopkg.in/src-d/go-git.v4/plumbing/storer"
	"gopkg.in/src-d/go-git.v4/storage"
	"gopkg.in/src-d/go-git.v4/storage/filesystem"
	"gopkg.in/src-d/go-git.v4/storage/memory"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/fs"
	"github.com/polydawn/pkgtree/objstore"
)

var _ objstore.Store = &Store{}

const refPrefix = "refs/heads/"

// LockFileName is the file beneath an on-disk repository which is flock'd while a transaction is open.
const LockFileName = "pkgtree.lock"

type Store struct {
	Codec

	storer   storage.Storer // git object and ref storage
	lockPath string         // empty for repositories not on the host filesystem

	mu sync.Mutex
	tx *transaction // nil when no transaction is open
}

// NewMemory returns an empty store held entirely in memory.
func NewMemory() *Store {
	return &Store{storer: memory.NewStorage()}
}

/*
	Open a store on a billy filesystem, initializing a bare repository there
	if there isn't one yet.

	No cross-process lock is taken for transactions; use Open for repositories
	on the host filesystem.

	May return errors of category:

	  - `pkgtree.ErrStoreUnavailable` -- if the repository cannot be initialized
*/
func NewOnFilesystem(bfs billy.Filesystem) (*Store, error) {
	st := filesystem.NewStorage(bfs, cache.NewObjectLRUDefault())
	if _, err := srcd_git.Init(st, nil); err != nil && err != srcd_git.ErrRepositoryAlreadyExists {
		return nil, Errorf(pkgtree.ErrStoreUnavailable, "cannot initialize repository: %s", err)
	}
	return &Store{storer: st}, nil
}

/*
	Open the repository at the given path on the host.

	If create is true, the directory and repository are created as needed;
	otherwise a missing repository is an error.

	May return errors of category:

	  - `pkgtree.ErrStoreUnavailable` -- if the repository doesn't exist or cannot be created
*/
func Open(path fs.AbsolutePath, create bool) (*Store, error) {
	details := map[string]string{"repo": path.String()}
	if create {
		if err := os.MkdirAll(path.String(), 0755); err != nil {
			return nil, ErrorDetailed(pkgtree.ErrStoreUnavailable, "cannot create repository directory: "+err.Error(), details)
		}
	} else if _, err := os.Stat(path.String()); err != nil {
		return nil, ErrorDetailed(pkgtree.ErrStoreUnavailable, "repository does not exist: "+err.Error(), details)
	}
	st := filesystem.NewStorage(osfs.New(path.String()), cache.NewObjectLRUDefault())
	if create {
		if _, err := srcd_git.Init(st, nil); err != nil && err != srcd_git.ErrRepositoryAlreadyExists {
			return nil, ErrorDetailed(pkgtree.ErrStoreUnavailable, "cannot initialize repository: "+err.Error(), details)
		}
	} else if _, err := srcd_git.Open(st, nil); err != nil {
		return nil, ErrorDetailed(pkgtree.ErrStoreUnavailable, "cannot open repository: "+err.Error(), details)
	}
	return &Store{
		storer:   st,
		lockPath: path.Join(fs.MustRelPath(LockFileName)).String(),
	}, nil
}

func (s *Store) ReadObject(id api.ObjectID) (objstore.Object, error) {
	h, err := idToHash(id)
	if err != nil {
		return objstore.Object{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readObject(id, h)
}

func (s *Store) readObject(id api.ObjectID, h plumbing.Hash) (objstore.Object, error) {
	if s.tx != nil {
		if obj, ok := s.tx.objects[h]; ok {
			return obj, nil
		}
	}
	eo, err := s.storer.EncodedObject(plumbing.AnyObject, h)
	switch {
	case err == plumbing.ErrObjectNotFound:
		return objstore.Object{}, ErrorDetailed(pkgtree.ErrObjectNotFound,
			"object "+id.Short()+" not found",
			map[string]string{"object": id.String()})
	case err != nil:
		return objstore.Object{}, ErrorDetailed(pkgtree.ErrIoFailure,
			"reading object "+id.Short()+": "+err.Error(),
			map[string]string{"object": id.String()})
	}
	return fromMemoryObject(eo)
}

func (s *Store) HasObject(id api.ObjectID) (bool, error) {
	h, err := idToHash(id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasObject(h)
}

func (s *Store) hasObject(h plumbing.Hash) (bool, error) {
	if s.tx != nil {
		if _, ok := s.tx.objects[h]; ok {
			return true, nil
		}
	}
	switch err := s.storer.HasEncodedObject(h); err {
	case nil:
		return true, nil
	case plumbing.ErrObjectNotFound:
		return false, nil
	default:
		return false, Errorf(pkgtree.ErrIoFailure, "checking for object %s: %s", h, err)
	}
}

func (s *Store) ReadCommit(id api.CommitID) (objstore.Commit, error) {
	obj, err := s.ReadObject(id)
	if err != nil {
		return objstore.Commit{}, err
	}
	return s.DecodeCommit(id, obj)
}

func (s *Store) ReadTree(id api.ObjectID) (objstore.Tree, error) {
	obj, err := s.ReadObject(id)
	if err != nil {
		return objstore.Tree{}, err
	}
	return s.DecodeTree(id, obj)
}

func (s *Store) ResolveRef(name string) (api.CommitID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		if h, ok := s.tx.refs[name]; ok {
			return hashToID(h), true, nil
		}
	}
	ref, err := storer.ResolveReference(s.storer, plumbing.ReferenceName(refPrefix+name))
	switch {
	case err == plumbing.ErrReferenceNotFound:
		return "", false, nil
	case err != nil:
		return "", false, ErrorDetailed(pkgtree.ErrIoFailure,
			"reading ref "+name+": "+err.Error(),
			map[string]string{"ref": name})
	}
	return hashToID(ref.Hash()), true, nil
}

func (s *Store) ListRefs(prefix string) ([]objstore.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := map[string]plumbing.Hash{}
	iter, err := s.storer.IterReferences()
	if err != nil {
		return nil, Errorf(pkgtree.ErrIoFailure, "listing refs: %s", err)
	}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		full := ref.Name().String()
		if ref.Type() != plumbing.HashReference || !strings.HasPrefix(full, refPrefix) {
			return nil
		}
		if name := full[len(refPrefix):]; strings.HasPrefix(name, prefix) {
			found[name] = ref.Hash()
		}
		return nil
	})
	if err != nil {
		return nil, Errorf(pkgtree.ErrIoFailure, "listing refs: %s", err)
	}
	if s.tx != nil {
		for name, h := range s.tx.refs {
			if strings.HasPrefix(name, prefix) {
				found[name] = h
			}
		}
	}
	refs := make([]objstore.Ref, 0, len(found))
	for name, h := range found {
		refs = append(refs, objstore.Ref{Name: name, Commit: hashToID(h)})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}
