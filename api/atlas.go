package api

import (
	"github.com/polydawn/refmt/obj/atlas"
)

// Atlas entries for every serializable type in this package.
//  Other atlases (like `pkgtree.Atlas`) include these by reference.
var AtlasEntries = []*atlas.AtlasEntry{
	atlas.BuildEntry(PackageIdentity{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(ChecksumNevraPair{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(ReplacedPackage{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(StringPair{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Variant{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(MetadataEntry{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(MetadataDocument{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Deployment{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(LayeredInfo{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(DiffEntry{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(PackageChange{}).StructMap().Autogenerate().Complete(),
}

// Atlas covering only this package; enough for persisting metadata documents.
var Atlas = atlas.MustBuild(AtlasEntries...)
