package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-quicktest/qt"
	"gopkg.in/yaml.v3"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/vfs"
)

// settingsFixture is the YAML shape test fixtures use to describe a
// SearchPathSettings without hand-building Go literals for every case,
// the way the teacher's mod/modfile tests load YAML-ish module fixtures.
type settingsFixture struct {
	SrcRoot          string   `yaml:"srcRoot"`
	ExtraPaths       []string `yaml:"extraPaths"`
	SitePackages     []string `yaml:"sitePackages"`
	CustomTypeshed   string   `yaml:"customTypeshed"`
	VendoredTypeshed string   `yaml:"vendoredTypeshed"`
	TargetVersion    string   `yaml:"targetVersion"`
}

func loadSettingsFixture(t *testing.T, src string) SearchPathSettings {
	t.Helper()
	var fx settingsFixture
	qt.Assert(t, qt.IsNil(yaml.Unmarshal([]byte(src), &fx)))
	v, ok := parseVersion(fx.TargetVersion)
	if fx.TargetVersion != "" {
		qt.Assert(t, qt.IsTrue(ok))
	}
	return SearchPathSettings{
		SrcRoot:          fx.SrcRoot,
		ExtraPaths:       fx.ExtraPaths,
		SitePackages:     fx.SitePackages,
		CustomTypeshed:   fx.CustomTypeshed,
		VendoredTypeshed: fx.VendoredTypeshed,
		TargetVersion:    v,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	qt.Assert(t, qt.IsNil(os.MkdirAll(filepath.Dir(path), 0o755)))
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte(content), 0o644)))
}

func TestResolveAbsoluteFindsModuleUnderSrcRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "x = 1\n")

	dbase := db.New(nil)
	store := vfs.New(dbase)
	r := New(dbase, store, nil)
	r.SetSearchPaths(SearchPathSettings{SrcRoot: root})

	var ok bool
	var id vfs.FileID
	_, err := db.GetOrCompute(dbase, "q", func(ctx *db.Ctx) (int, error) {
		id, ok = r.Resolve(ctx, "", Ref{Module: "pkg.mod", Kind: Absolute})
		return 0, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(store.Path(id), filepath.Join(root, "pkg", "mod.py")))
}

func TestResolveRelativeWalksUpLevels(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b", "caller.py"), "")
	writeFile(t, filepath.Join(root, "a", "sibling.py"), "y = 1\n")

	dbase := db.New(nil)
	store := vfs.New(dbase)
	r := New(dbase, store, nil)
	r.SetSearchPaths(SearchPathSettings{SrcRoot: root})

	callerDir := filepath.Join(root, "a", "b")
	var ok bool
	_, err := db.GetOrCompute(dbase, "q", func(ctx *db.Ctx) (int, error) {
		_, ok = r.Resolve(ctx, callerDir, Ref{Module: "sibling", Kind: Relative, Level: 2})
		return 0, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(ok))
}

func TestResolvePreferStubOverImplementation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "mod.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, "mod.pyi"), "x: int\n")

	dbase := db.New(nil)
	store := vfs.New(dbase)
	r := New(dbase, store, nil)
	r.SetSearchPaths(SearchPathSettings{SrcRoot: root})

	var id vfs.FileID
	var ok bool
	_, err := db.GetOrCompute(dbase, "q", func(ctx *db.Ctx) (int, error) {
		id, ok = r.Resolve(ctx, "", Ref{Module: "mod", Kind: Absolute})
		return 0, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(store.Path(id), filepath.Join(root, "mod.pyi")))
}

func TestResolveUnknownModuleReturnsFalseNotError(t *testing.T) {
	dbase := db.New(nil)
	store := vfs.New(dbase)
	r := New(dbase, store, nil)
	r.SetSearchPaths(SearchPathSettings{SrcRoot: t.TempDir()})

	var ok bool
	_, err := db.GetOrCompute(dbase, "q", func(ctx *db.Ctx) (int, error) {
		_, ok = r.Resolve(ctx, "", Ref{Module: "nope", Kind: Absolute})
		return 0, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsFalse(ok))
}

func TestAdmittedByVersionsGatesOnTargetVersion(t *testing.T) {
	typeshed := t.TempDir()
	writeFile(t, filepath.Join(typeshed, "VERSIONS"), "newmod: 3.10-\noldmod: 3.0-3.8\n")
	writeFile(t, filepath.Join(typeshed, "newmod.pyi"), "x: int\n")
	writeFile(t, filepath.Join(typeshed, "oldmod.pyi"), "y: int\n")

	dbase := db.New(nil)
	store := vfs.New(dbase)
	r := New(dbase, store, nil)
	r.SetSearchPaths(SearchPathSettings{
		CustomTypeshed: typeshed,
		TargetVersion:  Version{Major: 3, Minor: 12},
	})

	var okNew, okOld bool
	_, err := db.GetOrCompute(dbase, "q", func(ctx *db.Ctx) (int, error) {
		_, okNew = r.Resolve(ctx, "", Ref{Module: "newmod", Kind: Absolute})
		_, okOld = r.Resolve(ctx, "", Ref{Module: "oldmod", Kind: Absolute})
		return 0, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(okNew))  // 3.12 within 3.10-
	qt.Assert(t, qt.IsFalse(okOld)) // 3.12 outside 3.0-3.8
}

func TestSetSearchPathsInvalidatesPriorResolution(t *testing.T) {
	rootA := t.TempDir()
	writeFile(t, filepath.Join(rootA, "mod.py"), "x = 1\n")
	rootB := t.TempDir()
	writeFile(t, filepath.Join(rootB, "mod.py"), "y = 2\n")

	dbase := db.New(nil)
	store := vfs.New(dbase)
	r := New(dbase, store, nil)
	r.SetSearchPaths(SearchPathSettings{SrcRoot: rootA})

	calls := 0
	resolveOnce := func() (vfs.FileID, bool) {
		calls++
		var id vfs.FileID
		var ok bool
		db.GetOrCompute(dbase, "q", func(ctx *db.Ctx) (int, error) {
			id, ok = r.Resolve(ctx, "", Ref{Module: "mod", Kind: Absolute})
			return 0, nil
		})
		return id, ok
	}

	id1, ok1 := resolveOnce()
	qt.Assert(t, qt.IsTrue(ok1))
	qt.Assert(t, qt.Equals(store.Path(id1), filepath.Join(rootA, "mod.py")))

	r.SetSearchPaths(SearchPathSettings{SrcRoot: rootB})
	id2, ok2 := resolveOnce()
	qt.Assert(t, qt.IsTrue(ok2))
	qt.Assert(t, qt.Equals(store.Path(id2), filepath.Join(rootB, "mod.py")))
}

func TestParseVersionsLineForms(t *testing.T) {
	rng, name, ok := parseVersionsLine("os: 3.8-")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(name, "os"))
	qt.Assert(t, qt.Equals(rng.start, Version{Major: 3, Minor: 8}))
	qt.Assert(t, qt.IsFalse(rng.hasEnd))

	rng, name, ok = parseVersionsLine("_typeshed: 3.0-3.12")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(name, "_typeshed"))
	qt.Assert(t, qt.IsTrue(rng.hasEnd))
	qt.Assert(t, qt.Equals(rng.end, Version{Major: 3, Minor: 12}))

	_, _, ok = parseVersionsLine("malformed line")
	qt.Assert(t, qt.IsFalse(ok))
}

func TestResolveAbsoluteFindsModuleFromYAMLFixture(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "x = 1\n")

	fixture := "srcRoot: " + root + "\ntargetVersion: \"3.11\"\n"
	settings := loadSettingsFixture(t, fixture)
	qt.Assert(t, qt.Equals(settings.TargetVersion, Version{Major: 3, Minor: 11}))

	dbase := db.New(nil)
	store := vfs.New(dbase)
	r := New(dbase, store, nil)
	r.SetSearchPaths(settings)

	var ok bool
	_, err := db.GetOrCompute(dbase, "q", func(ctx *db.Ctx) (int, error) {
		_, ok = r.Resolve(ctx, "", Ref{Module: "pkg.mod", Kind: Absolute})
		return 0, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(ok))
}

func TestVersionLessAndLessEq(t *testing.T) {
	v38 := Version{Major: 3, Minor: 8}
	v312 := Version{Major: 3, Minor: 12}
	qt.Assert(t, qt.IsTrue(v38.Less(v312)))
	qt.Assert(t, qt.IsFalse(v312.Less(v38)))
	qt.Assert(t, qt.IsTrue(v38.LessEq(v38)))
}
