package api

/*
	Object IDs are content-addressable hashes, rendered as lowercase hex.

	Every object in a repository -- file contents, trees, and commits --
	is named by the hash of its serialized form; re-writing an object
	that already exists is therefore always a no-op.
*/
type ObjectID string

// CommitID is an ObjectID known to name a commit object.
type CommitID = ObjectID

func (id ObjectID) String() string { return string(id) }

// Short returns the first ten characters of the ID, for human-facing messages.
func (id ObjectID) Short() string {
	if len(id) > 10 {
		return string(id[:10])
	}
	return string(id)
}

/*
	A Deployment is a bootable pointer to a commit plus local state.

	Only the fields the layering inspector needs are modeled here;
	the deployment system itself is somebody else's concern.
*/
type Deployment struct {
	OSName   string   `refmt:"osname,omitempty"`
	Checksum CommitID `refmt:"checksum"`
	Serial   int      `refmt:"serial,omitempty"`
}

/*
	LayeredInfo describes how a deployment's commit relates to its base image.

	When IsLayered is false, every other field is empty.
	All identity sets are deduplicated and sorted by `PackageIdentity.Less`.
*/
type LayeredInfo struct {
	IsLayered            bool                `refmt:"isLayered"`
	BaseLayer            CommitID            `refmt:"baseLayer,omitempty"`
	LayeredPackages      []PackageIdentity   `refmt:"layeredPackages"`
	LocalPackages        []ChecksumNevraPair `refmt:"localPackages"`
	RemovedBasePackages  []PackageIdentity   `refmt:"removedBasePackages"`
	ReplacedBasePackages []ReplacedPackage   `refmt:"replacedBasePackages"`
}

type DiffKind string

const (
	DiffAdded    DiffKind = "added"
	DiffRemoved  DiffKind = "removed"
	DiffModified DiffKind = "modified"
)

/*
	DiffEntry is one path that differs between two tree snapshots.

	Path is slash-separated and relative to the tree root (no leading slash).
	OldRef is empty for additions; NewRef is empty for removals.
*/
type DiffEntry struct {
	Path   string   `refmt:"path"`
	Kind   DiffKind `refmt:"kind"`
	OldRef ObjectID `refmt:"oldRef,omitempty"`
	NewRef ObjectID `refmt:"newRef,omitempty"`
}

// PackageChange is one entry of a package-level diff.  Exactly which sides are set depends on Kind.
type PackageChange struct {
	Kind DiffKind         `refmt:"kind"`
	Old  *PackageIdentity `refmt:"old,omitempty"`
	New  *PackageIdentity `refmt:"new,omitempty"`
}

// Subject is the side a change is about: the new build for additions, the old one otherwise.
func (c PackageChange) Subject() PackageIdentity {
	if c.Kind == DiffAdded {
		return *c.New
	}
	return *c.Old
}
