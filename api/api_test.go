package api

import (
	"testing"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPackageIdentity(t *testing.T) {
	vim := PackageIdentity{"vim", EpochOf(2), "8.2", "1.fc34", "x86_64"}
	Convey("Identities", t, func() {
		Convey("render with the epoch whenever present", func() {
			So(vim.String(), ShouldEqual, "vim-2:8.2-1.fc34.x86_64")
			zero := vim
			zero.Epoch = EpochOf(0)
			So(zero.String(), ShouldEqual, "vim-0:8.2-1.fc34.x86_64")
			zero.Epoch = nil
			So(zero.String(), ShouldEqual, "vim-8.2-1.fc34.x86_64")
		})
		Convey("distinguish no epoch from epoch zero", func() {
			a := PackageIdentity{"vim", nil, "8.2", "1", "noarch"}
			b := PackageIdentity{"vim", EpochOf(0), "8.2", "1", "noarch"}
			So(a.Equal(b), ShouldBeFalse)
			So(b.Equal(PackageIdentity{"vim", EpochOf(0), "8.2", "1", "noarch"}), ShouldBeTrue)
		})
		Convey("order by name, then arch, then EVR", func() {
			So(PackageIdentity{"a", nil, "9", "1", "x86_64"}.Less(PackageIdentity{"b", nil, "1", "1", "aarch64"}), ShouldBeTrue)
			So(PackageIdentity{"a", nil, "9", "1", "aarch64"}.Less(PackageIdentity{"a", nil, "1", "1", "x86_64"}), ShouldBeTrue)
			So(vim.Less(vim), ShouldBeFalse)
		})
		Convey("require every field but the epoch", func() {
			So(vim.Validate(), ShouldBeNil)
			bad := vim
			bad.Release = ""
			So(bad.Validate(), ShouldNotBeNil)
			So(PackageIdentity{}.Validate(), ShouldNotBeNil)
		})
		Convey("refuse versions that would read back with an epoch", func() {
			sneaky := PackageIdentity{"vim", nil, "2:8.2", "1.fc34", "x86_64"}
			So(sneaky.String(), ShouldEqual, PackageIdentity{"vim", EpochOf(2), "8.2", "1.fc34", "x86_64"}.String())
			So(sneaky.Validate(), ShouldNotBeNil)
			sneaky.Epoch = EpochOf(1)
			So(sneaky.Validate(), ShouldNotBeNil)
		})
		Convey("share a slot across builds", func() {
			other := PackageIdentity{"vim", nil, "9.0", "1.fc35", "x86_64"}
			So(vim.SameSlot(other), ShouldBeTrue)
			other.Arch = "i686"
			So(vim.SameSlot(other), ShouldBeFalse)
		})
	})
}

func TestMetadata(t *testing.T) {
	md := Metadata{
		"layered":  BoolVariant(true),
		"version":  UintVariant(3),
		"packages": StringsVariant([]string{"vim-8.2-1.x86_64"}),
		"replaced": PairsVariant([]StringPair{{"a", "b"}}),
	}
	Convey("Metadata lookups", t, func() {
		Convey("return values of the expected shape", func() {
			b, found, err := md.LookupBool("layered")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(b, ShouldBeTrue)

			ss, _, err := md.LookupStrings("packages")
			So(err, ShouldBeNil)
			So(ss, ShouldResemble, []string{"vim-8.2-1.x86_64"})

			ps, _, err := md.LookupPairs("replaced")
			So(err, ShouldBeNil)
			So(ps, ShouldResemble, []StringPair{{"a", "b"}})
		})
		Convey("report absence without error", func() {
			_, found, err := md.LookupUint("nope")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})
		Convey("fail on shape mismatch", func() {
			_, found, err := md.LookupString("version")
			So(found, ShouldBeTrue)
			So(err, ShouldResemble, ErrMetadataShape{"version", VariantString, VariantUint})
		})
		Convey("of required keys fail on absence", func() {
			u, err := md.RequireUint("version")
			So(err, ShouldBeNil)
			So(u, ShouldEqual, uint64(3))
			_, err = md.RequireString("nope")
			So(err, ShouldResemble, ErrMetadataShape{Key: "nope", Want: VariantString})
		})
	})

	Convey("Metadata documents", t, func() {
		Convey("list keys in sorted order", func() {
			doc := md.Document()
			So(doc.Entries, ShouldHaveLength, 4)
			So(doc.Entries[0].Key, ShouldEqual, "layered")
			So(doc.Entries[3].Key, ShouldEqual, "version")
		})
		Convey("serialize identically regardless of map order", func() {
			first, err := refmt.MarshalAtlased(json.EncodeOptions{}, md.Document(), Atlas)
			So(err, ShouldBeNil)
			for i := 0; i < 10; i++ {
				again, err := refmt.MarshalAtlased(json.EncodeOptions{}, md.Document(), Atlas)
				So(err, ShouldBeNil)
				So(string(again), ShouldEqual, string(first))
			}

			var doc MetadataDocument
			So(refmt.UnmarshalAtlased(json.DecodeOptions{}, first, &doc, Atlas), ShouldBeNil)
			back, err := doc.Metadata()
			So(err, ShouldBeNil)
			So(back, ShouldResemble, md)
		})
		Convey("refuse repeated keys", func() {
			doc := MetadataDocument{Entries: []MetadataEntry{
				{"k", BoolVariant(true)},
				{"k", BoolVariant(false)},
			}}
			_, err := doc.Metadata()
			So(err, ShouldNotBeNil)
		})
	})
}
