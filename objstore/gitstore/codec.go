package gitstore

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"
	"gopkg.in/src-d/go-git.v4/plumbing/object"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/objstore"
)

/*
	Objects are stored in git's object format: hashes are sha1 over
	"<type> <len>\x00<data>", trees and commits use git's encodings.

	Commit metadata rides in the commit message.  The first line is the
	subject; if there is metadata, it follows a blank line as a json
	MetadataDocument.  Authorship is fixed, so a commit's hash depends only
	on its parent, tree, subject, timestamp, and metadata.
*/
var committer = object.Signature{
	Name:  "pkgtree",
	Email: "pkgtree@localhost",
}

var _ objstore.Codec = Codec{}

type Codec struct{}

func (Codec) Checksum(obj objstore.Object) api.ObjectID {
	return hashToID(plumbing.ComputeHash(kindToType(obj.Kind), obj.Data))
}

func (Codec) DecodeCommit(id api.CommitID, obj objstore.Object) (objstore.Commit, error) {
	if obj.Kind != objstore.KindCommit {
		return objstore.Commit{}, corrupt(id, "expected a commit, found a %s", obj.Kind)
	}
	var gc object.Commit
	if err := gc.Decode(toMemoryObject(obj)); err != nil {
		return objstore.Commit{}, corrupt(id, "undecodable commit: %s", err)
	}
	c := objstore.Commit{
		ID:        id,
		Tree:      hashToID(gc.TreeHash),
		Timestamp: gc.Committer.When,
	}
	switch len(gc.ParentHashes) {
	case 0:
	case 1:
		c.Parent = hashToID(gc.ParentHashes[0])
	default:
		return objstore.Commit{}, corrupt(id, "commit has %d parents; history must be linear", len(gc.ParentHashes))
	}
	subject, md, err := splitMessage(gc.Message)
	if err != nil {
		return objstore.Commit{}, corrupt(id, "commit metadata unreadable: %s", err)
	}
	c.Subject, c.Metadata = subject, md
	return c, nil
}

func (Codec) DecodeTree(id api.ObjectID, obj objstore.Object) (objstore.Tree, error) {
	if obj.Kind != objstore.KindTree {
		return objstore.Tree{}, corrupt(id, "expected a tree, found a %s", obj.Kind)
	}
	var gt object.Tree
	if err := gt.Decode(toMemoryObject(obj)); err != nil {
		return objstore.Tree{}, corrupt(id, "undecodable tree: %s", err)
	}
	t := objstore.Tree{ID: id, Entries: make([]objstore.TreeEntry, len(gt.Entries))}
	for i, ent := range gt.Entries {
		kind, ok := modeToKind(ent.Mode)
		if !ok {
			return objstore.Tree{}, corrupt(id, "tree entry %q has unsupported mode %s", ent.Name, ent.Mode)
		}
		t.Entries[i] = objstore.TreeEntry{Name: ent.Name, Kind: kind, ID: hashToID(ent.Hash)}
	}
	return t, nil
}

func encodeTree(entries []objstore.TreeEntry) (objstore.Object, error) {
	gt := object.Tree{Entries: make([]object.TreeEntry, len(entries))}
	seen := make(map[string]struct{}, len(entries))
	for i, ent := range entries {
		if err := checkEntryName(ent.Name); err != nil {
			return objstore.Object{}, err
		}
		if _, dup := seen[ent.Name]; dup {
			return objstore.Object{}, Errorf(pkgtree.ErrUsage, "tree entry name %q repeated", ent.Name)
		}
		seen[ent.Name] = struct{}{}
		mode, ok := kindToMode(ent.Kind)
		if !ok {
			return objstore.Object{}, Errorf(pkgtree.ErrUsage, "tree entry %q has unknown kind %q", ent.Name, ent.Kind)
		}
		h, err := idToHash(ent.ID)
		if err != nil {
			return objstore.Object{}, err
		}
		gt.Entries[i] = object.TreeEntry{Name: ent.Name, Mode: mode, Hash: h}
	}
	// Git orders entries as if directory names carried a trailing slash.
	sort.Slice(gt.Entries, func(i, j int) bool {
		return treeSortKey(gt.Entries[i]) < treeSortKey(gt.Entries[j])
	})
	mo := &plumbing.MemoryObject{}
	if err := gt.Encode(mo); err != nil {
		return objstore.Object{}, Errorf(pkgtree.ErrIoFailure, "encoding tree: %s", err)
	}
	return fromMemoryObject(mo)
}

func treeSortKey(ent object.TreeEntry) string {
	if ent.Mode == filemode.Dir {
		return ent.Name + "/"
	}
	return ent.Name
}

func checkEntryName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return Errorf(pkgtree.ErrUsage, "invalid tree entry name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return Errorf(pkgtree.ErrUsage, "tree entry name %q may not contain slashes or NUL", name)
	}
	return nil
}

func encodeCommit(c objstore.Commit) (objstore.Object, error) {
	if strings.ContainsRune(c.Subject, '\n') {
		return objstore.Object{}, Errorf(pkgtree.ErrUsage, "commit subject may not contain newlines")
	}
	tree, err := idToHash(c.Tree)
	if err != nil {
		return objstore.Object{}, err
	}
	when := c.Timestamp
	if when.IsZero() {
		when = time.Unix(0, 0)
	}
	sig := committer
	sig.When = when.UTC()
	gc := object.Commit{
		Author:    sig,
		Committer: sig,
		TreeHash:  tree,
	}
	if c.Parent != "" {
		parent, err := idToHash(c.Parent)
		if err != nil {
			return objstore.Object{}, err
		}
		gc.ParentHashes = []plumbing.Hash{parent}
	}
	gc.Message, err = joinMessage(c.Subject, c.Metadata)
	if err != nil {
		return objstore.Object{}, err
	}
	mo := &plumbing.MemoryObject{}
	if err := gc.Encode(mo); err != nil {
		return objstore.Object{}, Errorf(pkgtree.ErrIoFailure, "encoding commit: %s", err)
	}
	return fromMemoryObject(mo)
}

func joinMessage(subject string, md api.Metadata) (string, error) {
	if len(md) == 0 {
		return subject + "\n", nil
	}
	body, err := refmt.MarshalAtlased(json.EncodeOptions{}, md.Document(), api.Atlas)
	if err != nil {
		return "", Errorf(pkgtree.ErrUsage, "commit metadata cannot be serialized: %s", err)
	}
	return subject + "\n\n" + string(body) + "\n", nil
}

func splitMessage(msg string) (string, api.Metadata, error) {
	idx := strings.Index(msg, "\n\n")
	if idx < 0 {
		return strings.TrimSuffix(msg, "\n"), api.Metadata{}, nil
	}
	var doc api.MetadataDocument
	body := bytes.TrimSpace([]byte(msg[idx+2:]))
	if err := refmt.UnmarshalAtlased(json.DecodeOptions{}, body, &doc, api.Atlas); err != nil {
		return "", nil, err
	}
	md, err := doc.Metadata()
	if err != nil {
		return "", nil, err
	}
	return msg[:idx], md, nil
}

func modeToKind(m filemode.FileMode) (objstore.EntryKind, bool) {
	switch m {
	case filemode.Dir:
		return objstore.EntryDir, true
	case filemode.Regular, filemode.Deprecated:
		return objstore.EntryFile, true
	case filemode.Executable:
		return objstore.EntryExecutable, true
	case filemode.Symlink:
		return objstore.EntrySymlink, true
	default:
		return "", false
	}
}

func kindToMode(k objstore.EntryKind) (filemode.FileMode, bool) {
	switch k {
	case objstore.EntryDir:
		return filemode.Dir, true
	case objstore.EntryFile:
		return filemode.Regular, true
	case objstore.EntryExecutable:
		return filemode.Executable, true
	case objstore.EntrySymlink:
		return filemode.Symlink, true
	default:
		return filemode.Empty, false
	}
}

func kindToType(k objstore.ObjectKind) plumbing.ObjectType {
	switch k {
	case objstore.KindBlob:
		return plumbing.BlobObject
	case objstore.KindTree:
		return plumbing.TreeObject
	case objstore.KindCommit:
		return plumbing.CommitObject
	default:
		return plumbing.InvalidObject
	}
}

func typeToKind(t plumbing.ObjectType) (objstore.ObjectKind, bool) {
	switch t {
	case plumbing.BlobObject:
		return objstore.KindBlob, true
	case plumbing.TreeObject:
		return objstore.KindTree, true
	case plumbing.CommitObject:
		return objstore.KindCommit, true
	default:
		return "", false
	}
}

func toMemoryObject(obj objstore.Object) *plumbing.MemoryObject {
	mo := &plumbing.MemoryObject{}
	mo.SetType(kindToType(obj.Kind))
	mo.Write(obj.Data)
	return mo
}

func fromMemoryObject(eo plumbing.EncodedObject) (objstore.Object, error) {
	kind, ok := typeToKind(eo.Type())
	if !ok {
		return objstore.Object{}, Errorf(pkgtree.ErrStoreCorrupt, "object %s has unsupported type %s", eo.Hash(), eo.Type())
	}
	r, err := eo.Reader()
	if err != nil {
		return objstore.Object{}, Errorf(pkgtree.ErrIoFailure, "reading object %s: %s", eo.Hash(), err)
	}
	defer r.Close()
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return objstore.Object{}, Errorf(pkgtree.ErrIoFailure, "reading object %s: %s", eo.Hash(), err)
	}
	return objstore.Object{Kind: kind, Data: data}, nil
}

func hashToID(h plumbing.Hash) api.ObjectID {
	return api.ObjectID(h.String())
}

/*
	Parse an object ID into a git hash.
	Must be exactly 40 lowercase hex characters.
*/
func idToHash(id api.ObjectID) (plumbing.Hash, error) {
	s := string(id)
	if len(s) != 40 {
		return plumbing.ZeroHash, Errorf(pkgtree.ErrUsage, "object IDs are 40 hex characters, got %q", s)
	}
	if _, err := hex.DecodeString(s); err != nil || strings.ToLower(s) != s {
		return plumbing.ZeroHash, Errorf(pkgtree.ErrUsage, "object IDs are lowercase hex strings, got %q", s)
	}
	return plumbing.NewHash(s), nil
}

func corrupt(id api.ObjectID, format string, args ...interface{}) error {
	return ErrorDetailed(pkgtree.ErrStoreCorrupt,
		"object "+id.Short()+": "+fmt.Sprintf(format, args...),
		map[string]string{"object": id.String()})
}
