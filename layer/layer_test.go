package layer

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/polydawn/pkgtree/api"
	"github.com/polydawn/pkgtree/api/pkgtree"
	"github.com/polydawn/pkgtree/nevra"
	"github.com/polydawn/pkgtree/objstore"
	"github.com/polydawn/pkgtree/objstore/gitstore"
	"github.com/polydawn/pkgtree/testutil"
)

var (
	vim      = nevra.MustParse("vim-enhanced-2:8.2.2637-1.fc34.x86_64")
	htop     = nevra.MustParse("htop-3.0.5-4.fc34.x86_64")
	nano     = nevra.MustParse("nano-5.6.1-1.fc34.x86_64")
	kernel   = nevra.MustParse("kernel-5.11.12-300.fc34.x86_64")
	kernel2  = nevra.MustParse("kernel-5.12.0-0.rc7.fc35.x86_64")
	localSum = strings.Repeat("ab", 32)
)

func TestInspect(t *testing.T) {
	Convey("Given a base commit in a store", t, func() {
		store := gitstore.NewMemory()
		var base api.CommitID
		testutil.InTransaction(store, func() {
			base = testutil.WriteCommit(store, "", "base", testutil.Files{"usr/bin/true": "#!x"}, nil)
		})

		Convey("a commit without layering metadata is not layered", func() {
			info, err := Inspect(store, api.Deployment{Checksum: base})
			So(err, ShouldBeNil)
			So(info.IsLayered, ShouldBeFalse)
			So(info.BaseLayer, ShouldEqual, "")
			So(info.LayeredPackages, ShouldBeEmpty)
			So(info.LocalPackages, ShouldBeEmpty)
			So(info.RemovedBasePackages, ShouldBeEmpty)
			So(info.ReplacedBasePackages, ShouldBeEmpty)
		})

		Convey("a commit annotated by Annotate reads back, sorted and deduplicated", func() {
			md, err := Annotate(api.Metadata{"other": api.StringVariant("kept")}, api.LayeredInfo{
				IsLayered:            true,
				LayeredPackages:      []api.PackageIdentity{vim, htop, vim},
				LocalPackages:        []api.ChecksumNevraPair{{Sha256: localSum, Nevra: nano.String()}},
				RemovedBasePackages:  []api.PackageIdentity{nano},
				ReplacedBasePackages: []api.ReplacedPackage{{Old: kernel, New: kernel2}},
			})
			So(err, ShouldBeNil)
			So(md["other"], ShouldResemble, api.StringVariant("kept"))

			var layered api.CommitID
			testutil.InTransaction(store, func() {
				layered = testutil.WriteCommit(store, base, "layered", testutil.Files{"usr/bin/vim": "#!y"}, md)
			})
			info, err := Inspect(store, api.Deployment{OSName: "fedora", Checksum: layered})
			So(err, ShouldBeNil)
			So(info.IsLayered, ShouldBeTrue)
			So(info.BaseLayer, ShouldEqual, base)
			So(info.LayeredPackages, ShouldResemble, []api.PackageIdentity{htop, vim})
			So(info.LocalPackages, ShouldResemble, []api.ChecksumNevraPair{{Sha256: localSum, Nevra: nano.String()}})
			So(info.RemovedBasePackages, ShouldResemble, []api.PackageIdentity{nano})
			So(info.ReplacedBasePackages, ShouldResemble, []api.ReplacedPackage{{Old: kernel, New: kernel2}})

			Convey("and re-annotating as unlayered strips it again", func() {
				md, err := Annotate(md, api.LayeredInfo{})
				So(err, ShouldBeNil)
				So(md.Keys(), ShouldResemble, []string{"other"})
			})
		})

		Convey("a missing commit is not found", func() {
			_, err := Inspect(store, api.Deployment{Checksum: "0123456789012345678901234567890123456789"})
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrObjectNotFound)
		})
	})
}

func TestFromCommit(t *testing.T) {
	commit := func(md api.Metadata) objstore.Commit {
		return objstore.Commit{
			ID:       "1111111111111111111111111111111111111111",
			Parent:   "2222222222222222222222222222222222222222",
			Metadata: md,
		}
	}
	v3 := func(edit func(api.Metadata)) api.Metadata {
		md := api.Metadata{
			KeyClientLayer:          api.BoolVariant(true),
			KeyClientLayerVersion:   api.UintVariant(3),
			KeyPackages:             api.StringsVariant([]string{vim.String()}),
			KeyLocalPackages:        api.StringsVariant(nil),
			KeyRemovedBasePackages:  api.StringsVariant(nil),
			KeyReplacedBasePackages: api.PairsVariant(nil),
		}
		edit(md)
		return md
	}

	Convey("Layering metadata decoding", t, func() {
		Convey("clientlayer set false is not layered", func() {
			info, err := FromCommit(commit(api.Metadata{KeyClientLayer: api.BoolVariant(false)}))
			So(err, ShouldBeNil)
			So(info.IsLayered, ShouldBeFalse)
		})

		Convey("version 1 commits carry only packages", func() {
			info, err := FromCommit(commit(api.Metadata{
				KeyClientLayer: api.BoolVariant(true),
				KeyPackages:    api.StringsVariant([]string{vim.String()}),
			}))
			So(err, ShouldBeNil)
			So(info.IsLayered, ShouldBeTrue)
			So(info.LayeredPackages, ShouldResemble, []api.PackageIdentity{vim})
			So(info.LocalPackages, ShouldBeEmpty)
		})

		Convey("well-formed version 3 decodes", func() {
			_, err := FromCommit(commit(v3(func(api.Metadata) {})))
			So(err, ShouldBeNil)
		})

		for _, tr := range []struct {
			title string
			edit  func(api.Metadata)
		}{
			{"a malformed nevra", func(md api.Metadata) {
				md[KeyPackages] = api.StringsVariant([]string{vim.String(), "not-a-nevra"})
			}},
			{"the wrong shape", func(md api.Metadata) {
				md[KeyPackages] = api.StringVariant(vim.String())
			}},
			{"a layer flag of the wrong shape", func(md api.Metadata) {
				md[KeyClientLayer] = api.StringVariant("yes")
			}},
			{"an unknown version", func(md api.Metadata) {
				md[KeyClientLayerVersion] = api.UintVariant(7)
			}},
			{"a missing required key", func(md api.Metadata) {
				delete(md, KeyRemovedBasePackages)
			}},
			{"a malformed local package", func(md api.Metadata) {
				md[KeyLocalPackages] = api.StringsVariant([]string{"abc:" + nano.String()})
			}},
			{"a replacement changing name", func(md api.Metadata) {
				md[KeyReplacedBasePackages] = api.PairsVariant([]api.StringPair{{A: kernel.String(), B: htop.String()}})
			}},
			{"a replacement changing arch", func(md api.Metadata) {
				md[KeyReplacedBasePackages] = api.PairsVariant([]api.StringPair{{A: kernel.String(), B: "kernel-5.11.12-300.fc34.aarch64"}})
			}},
		} {
			tr := tr
			Convey("refuses "+tr.title+" outright", func() {
				info, err := FromCommit(commit(v3(tr.edit)))
				So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrCorruptLayeringMetadata)
				So(info, ShouldResemble, api.LayeredInfo{})
			})
		}

		Convey("a layered commit without a parent is corrupt", func() {
			c := commit(v3(func(api.Metadata) {}))
			c.Parent = ""
			_, err := FromCommit(c)
			So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrCorruptLayeringMetadata)
		})

		Convey("errors name the key and entry", func() {
			_, err := FromCommit(commit(v3(func(md api.Metadata) {
				md[KeyRemovedBasePackages] = api.StringsVariant([]string{"junk"})
			})))
			details := err.(errcat.Error).Details()
			So(details["key"], ShouldEqual, KeyRemovedBasePackages)
			So(details["entry"], ShouldEqual, "junk")
		})
	})
}

func TestAnnotate(t *testing.T) {
	Convey("Annotate refuses what Inspect would refuse", t, func() {
		_, err := Annotate(nil, api.LayeredInfo{
			IsLayered:            true,
			ReplacedBasePackages: []api.ReplacedPackage{{Old: kernel, New: htop}},
		})
		So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrUsage)

		_, err = Annotate(nil, api.LayeredInfo{
			IsLayered:       true,
			LayeredPackages: []api.PackageIdentity{{Name: "x"}},
		})
		So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrUsage)

		_, err = Annotate(nil, api.LayeredInfo{
			IsLayered:     true,
			LocalPackages: []api.ChecksumNevraPair{{Sha256: "beef", Nevra: nano.String()}},
		})
		So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrUsage)

		_, err = Annotate(nil, api.LayeredInfo{
			IsLayered:       true,
			LayeredPackages: []api.PackageIdentity{{Name: "htop", Version: "1:3.0.5", Release: "4.fc34", Arch: "x86_64"}},
		})
		So(err, errcat.ErrorShouldHaveCategory, pkgtree.ErrUsage)
	})
}

func TestPackageList(t *testing.T) {
	Convey("Given commits with and without a package list", t, func() {
		store := gitstore.NewMemory()
		var with, without api.CommitID
		testutil.InTransaction(store, func() {
			md, err := AnnotatePackageList(nil, []api.PackageIdentity{vim, kernel, htop, kernel})
			So(err, ShouldBeNil)
			with = testutil.WriteCommit(store, "", "with", testutil.Files{}, md)
			without = testutil.WriteCommit(store, "", "without", testutil.Files{}, nil)
		})

		Convey("the list reads back sorted", func() {
			ids, found, err := PackageList(store, with)
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(ids, ShouldResemble, []api.PackageIdentity{htop, kernel, vim})
		})

		Convey("absence is reported, not an error", func() {
			ids, found, err := PackageList(store, without)
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
			So(ids, ShouldBeEmpty)
		})
	})
}

func TestDescribe(t *testing.T) {
	Convey("Describe lists changes by kind", t, func() {
		So(Describe(api.LayeredInfo{}), ShouldEqual, "not layered\n")
		So(Describe(api.LayeredInfo{
			IsLayered:            true,
			BaseLayer:            "abc",
			LayeredPackages:      []api.PackageIdentity{htop},
			RemovedBasePackages:  []api.PackageIdentity{nano},
			ReplacedBasePackages: []api.ReplacedPackage{{Old: kernel, New: kernel2}},
		}), ShouldEqual, ""+
			"base layer: abc\n"+
			"  + htop-3.0.5-4.fc34.x86_64\n"+
			"  - nano-5.6.1-1.fc34.x86_64\n"+
			"  ~ kernel-5.11.12-300.fc34.x86_64 -> 5.12.0-0.rc7.fc35\n")
	})
}
