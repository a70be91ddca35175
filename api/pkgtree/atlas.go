package pkgtree

import (
	"time"

	"github.com/polydawn/refmt/obj/atlas"

	"github.com/polydawn/pkgtree/api"
)

var timeAtlasEntry = atlas.BuildEntry(time.Time{}).Transform().
	TransformMarshal(atlas.MakeMarshalTransformFunc(
		func(x time.Time) (string, error) {
			return x.UTC().Format(time.RFC3339Nano), nil
		})).
	TransformUnmarshal(atlas.MakeUnmarshalTransformFunc(
		func(x string) (time.Time, error) {
			return time.Parse(time.RFC3339Nano, x)
		})).
	Complete()

// Atlas entries for the event types, plus everything in `api`.
//  Callers with more types to serialize inside an Event_Result append theirs.
var AtlasEntries = append([]*atlas.AtlasEntry{
	atlas.BuildEntry(Event{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Log{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Progress{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Event_Result{}).StructMap().Autogenerate().Complete(),
	atlas.BuildEntry(Error{}).StructMap().Autogenerate().Complete(),
	timeAtlasEntry,
}, api.AtlasEntries...)

var Atlas = atlas.MustBuild(AtlasEntries...)
