package api

/*
	This file holds the serializable vocabulary for package identities.
*/

import (
	"fmt"
	"strconv"
	"strings"
)

/*
	PackageIdentity is the NEVRA of a package unit:
	name, epoch, version, release, and architecture.

	Name, Version, Release, and Arch must be non-empty.
	A nil Epoch ("no epoch recorded") is distinct from an Epoch of zero;
	the distinction is preserved by every encoding in this module.

	Treat values as immutable once constructed.
*/
type PackageIdentity struct {
	Name    string  `refmt:"name"`
	Epoch   *uint64 `refmt:"epoch,omitempty"`
	Version string  `refmt:"version"`
	Release string  `refmt:"release"`
	Arch    string  `refmt:"arch"`
}

// EpochOf returns a pointer to a fresh copy of n, for filling in PackageIdentity.Epoch.
func EpochOf(n uint64) *uint64 {
	return &n
}

// Validate reports which required field is missing, if any, or a version
// that would read back as carrying an epoch.
func (id PackageIdentity) Validate() error {
	switch {
	case id.Name == "":
		return fmt.Errorf("package identity has empty name")
	case id.Version == "":
		return fmt.Errorf("package identity %q has empty version", id.Name)
	case strings.ContainsRune(id.Version, ':'):
		return fmt.Errorf("package identity %q has ':' in version %q; epochs go in the epoch field", id.Name, id.Version)
	case id.Release == "":
		return fmt.Errorf("package identity %q has empty release", id.Name)
	case id.Arch == "":
		return fmt.Errorf("package identity %q has empty arch", id.Name)
	}
	return nil
}

// Equal is true iff every field matches, including epoch presence.
func (id PackageIdentity) Equal(other PackageIdentity) bool {
	if id.Name != other.Name || id.Version != other.Version || id.Release != other.Release || id.Arch != other.Arch {
		return false
	}
	switch {
	case id.Epoch == nil && other.Epoch == nil:
		return true
	case id.Epoch == nil || other.Epoch == nil:
		return false
	default:
		return *id.Epoch == *other.Epoch
	}
}

/*
	Less is a total order over identities: by name, arch, then the
	"[epoch:]version-release" string.  It is for deterministic presentation,
	not a version comparison.
*/
func (id PackageIdentity) Less(other PackageIdentity) bool {
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	if id.Arch != other.Arch {
		return id.Arch < other.Arch
	}
	return id.EVR() < other.EVR()
}

// EVR renders "[epoch:]version-release".
func (id PackageIdentity) EVR() string {
	if id.Epoch == nil {
		return id.Version + "-" + id.Release
	}
	return strconv.FormatUint(*id.Epoch, 10) + ":" + id.Version + "-" + id.Release
}

/*
	String renders the conventional NEVRA string: "name-[epoch:]version-release.arch".

	The epoch is printed whenever it is present, including "0:",
	so that `nevra.Parse` can recover the exact identity.
*/
func (id PackageIdentity) String() string {
	return id.Name + "-" + id.EVR() + "." + id.Arch
}

// SameSlot is true when both identities name the same package on the same arch.
func (id PackageIdentity) SameSlot(other PackageIdentity) bool {
	return id.Name == other.Name && id.Arch == other.Arch
}

/*
	ChecksumNevraPair is the decomposed form of a "<sha256>:<nevra>" composite,
	as recorded for packages which were supplied locally rather than from a repo.
*/
type ChecksumNevraPair struct {
	Sha256 string `refmt:"sha256"`
	Nevra  string `refmt:"nevra"`
}

func (p ChecksumNevraPair) String() string {
	return p.Sha256 + ":" + p.Nevra
}

// ReplacedPackage is one (old, new) pair of a base package overridden by another build.
type ReplacedPackage struct {
	Old PackageIdentity `refmt:"old"`
	New PackageIdentity `refmt:"new"`
}
