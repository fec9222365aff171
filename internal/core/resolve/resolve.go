// Package resolve implements the Module Resolver (spec.md §4.6):
// translating a (caller file, module name, absolute-or-relative) triple
// to a resolved file, gated by per-directory VERSIONS files. Its layered
// search-path ordering and stub-over-implementation precedence are
// grounded on the teacher's cue/load search-path config (Config's
// ModuleRoot/extra roots) and import.go's candidate-file trial order,
// adapted from CUE's package-pattern matching to a fixed, version-gated
// directory list.
package resolve

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/vfs"
)

// Version is a Python (major, minor) target, e.g. {3, 12}.
type Version struct {
	Major, Minor int
}

// Less reports whether v precedes o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// LessEq reports whether v precedes or equals o.
func (v Version) LessEq(o Version) bool { return v == o || v.Less(o) }

// SearchPathSettings is the immutable configuration the resolver searches
// against (spec.md §4.6 "Configuration structure"). Any change bumps the
// database revision and invalidates all resolution queries, handled by
// threading it through SetInput rather than holding it as a plain field.
type SearchPathSettings struct {
	ExtraPaths      []string
	SrcRoot         string
	CustomTypeshed  string // "" if not configured
	SitePackages    []string
	VendoredTypeshed string // "" disables the vendored fallback
	TargetVersion   Version
}

type inputKey struct{}

// Resolver resolves module names to files against a Database-tracked
// SearchPathSettings and a shared vfs.Store.
type Resolver struct {
	db    *db.Database
	store *vfs.Store
	log   *slog.Logger

	mu             sync.Mutex
	versionsCache  map[string]map[string]versionRange // typeshed dir -> module -> range
	warnedVersions map[string]bool                    // dir+":"+line, warned once
}

type versionRange struct {
	start, end Version
	hasEnd     bool
}

// New creates a Resolver. A nil logger disables warnings about malformed
// VERSIONS entries.
func New(database *db.Database, store *vfs.Store, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}
	return &Resolver{
		db: database, store: store, log: log,
		versionsCache:  make(map[string]map[string]versionRange),
		warnedVersions: make(map[string]bool),
	}
}

// SetSearchPaths installs settings as the current configuration, bumping
// the database revision (spec.md §4.6 "Any change to this structure bumps
// the database revision and invalidates all resolution queries").
func (r *Resolver) SetSearchPaths(settings SearchPathSettings) {
	r.mu.Lock()
	r.versionsCache = make(map[string]map[string]versionRange)
	r.mu.Unlock()
	r.db.SetInput(inputKey{}, settings)
}

func (r *Resolver) settings(ctx *db.Ctx) SearchPathSettings {
	v, ok := ctx.ReadInput(inputKey{})
	if !ok {
		return SearchPathSettings{}
	}
	return v.(SearchPathSettings)
}

// TargetVersion returns the currently configured target Python version,
// for callers (e.g. rule checks) that need to agree with the resolver
// on which version gates VERSIONS-file admission.
func (r *Resolver) TargetVersion(ctx *db.Ctx) Version {
	return r.settings(ctx).TargetVersion
}

// Kind classifies how a dependency reference is spelled (spec.md §3
// "Dependency edge").
type Kind int

const (
	Absolute Kind = iota
	Relative
)

// Ref is one (module-name, kind) reference to resolve, as recorded in a
// Dependency edge.
type Ref struct {
	Module string // dotted, e.g. "a.b.c"
	Kind   Kind
	Level  int // dot-count for Relative; unused for Absolute
}

// dirCandidate is one directory considered during search, tagged with
// the vfs.Kind the resolved file should be classified as.
type dirCandidate struct {
	dir  string
	kind vfs.Kind
	// typeshedRoot is set when dir sits under a typeshed tree, so
	// VERSIONS gating applies relative to this root.
	typeshedRoot string
}

// Resolve translates ref, observed inside callerPkgDir (the first-party
// package directory containing the caller, or "" if the caller is not
// itself inside a package), to a FileID. It returns ok=false, not an
// error, when nothing matches (spec.md §4.6 "unresolved names are not
// errors; the return is None").
func (r *Resolver) Resolve(ctx *db.Ctx, callerPkgDir string, ref Ref) (vfs.FileID, bool) {
	if err := ctx.CheckCancelled(); err != nil {
		return 0, false
	}
	settings := r.settings(ctx)

	if ref.Kind == Relative && callerPkgDir != "" {
		dir := callerPkgDir
		for i := 1; i < ref.Level; i++ {
			dir = filepath.Dir(dir)
		}
		segs := strings.Split(ref.Module, ".")
		if ref.Module == "" {
			segs = nil
		}
		rel := filepath.Join(segs...)
		if f, ok := r.tryCandidate(dirCandidate{dir: dir, kind: vfs.KindFirstParty}, rel, settings); ok {
			return f, true
		}
		return 0, false
	}

	segs := strings.Split(ref.Module, ".")
	rel := filepath.Join(segs...)

	for _, d := range r.searchPath(settings) {
		if f, ok := r.tryCandidate(d, rel, settings); ok {
			return f, true
		}
	}
	return 0, false
}

// searchPath enumerates the ordered list of candidate directories
// (spec.md §4.6 "Search order", step 2).
func (r *Resolver) searchPath(settings SearchPathSettings) []dirCandidate {
	var out []dirCandidate
	for _, p := range settings.ExtraPaths {
		out = append(out, dirCandidate{dir: p, kind: vfs.KindFirstParty})
	}
	if settings.SrcRoot != "" {
		out = append(out, dirCandidate{dir: settings.SrcRoot, kind: vfs.KindFirstParty})
	}
	if settings.CustomTypeshed != "" {
		out = append(out, dirCandidate{dir: settings.CustomTypeshed, kind: vfs.KindVendoredTypeshed, typeshedRoot: settings.CustomTypeshed})
	}
	for _, p := range settings.SitePackages {
		out = append(out, dirCandidate{dir: p, kind: vfs.KindThirdParty})
	}
	if settings.VendoredTypeshed != "" {
		out = append(out, dirCandidate{dir: settings.VendoredTypeshed, kind: vfs.KindVendoredTypeshed, typeshedRoot: settings.VendoredTypeshed})
	}
	return out
}

// tryCandidate applies step 4's stub-then-implementation trial order
// within one directory, after step 3's VERSIONS gating.
func (r *Resolver) tryCandidate(d dirCandidate, rel string, settings SearchPathSettings) (vfs.FileID, bool) {
	if d.typeshedRoot != "" {
		moduleName := filepath.ToSlash(rel)
		moduleName = strings.ReplaceAll(moduleName, "/", ".")
		if !r.admittedByVersions(d.typeshedRoot, moduleName, settings.TargetVersion) {
			return 0, false
		}
	}

	base := filepath.Join(d.dir, rel)
	candidates := []string{
		filepath.Join(base, "__init__.pyi"),
		filepath.Join(base, "__init__.py"),
		base + ".pyi",
		base + ".py",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return r.store.FileForPath(c, d.kind), true
		}
	}
	return 0, false
}

// admittedByVersions consults root's VERSIONS file, admitting moduleName
// only if settings' target version falls within its declared interval
// (spec.md §4.6 step 3). A directory with no VERSIONS file admits
// everything — only typeshed-style roots are expected to carry one.
func (r *Resolver) admittedByVersions(root, moduleName string, target Version) bool {
	versions := r.loadVersions(root)
	if versions == nil {
		return true
	}
	// A dotted submodule (e.g. "os.path") is gated by its top-level
	// package entry if no exact entry exists.
	rng, ok := versions[moduleName]
	if !ok {
		if i := strings.IndexByte(moduleName, '.'); i >= 0 {
			rng, ok = versions[moduleName[:i]]
		}
	}
	if !ok {
		return true
	}
	if target.Less(rng.start) {
		return false
	}
	if rng.hasEnd && rng.end.Less(target) {
		return false
	}
	return true
}

func (r *Resolver) loadVersions(root string) map[string]versionRange {
	r.mu.Lock()
	if v, ok := r.versionsCache[root]; ok {
		r.mu.Unlock()
		return v
	}
	r.mu.Unlock()

	path := filepath.Join(root, "VERSIONS")
	f, err := os.Open(path)
	if err != nil {
		r.mu.Lock()
		r.versionsCache[root] = nil
		r.mu.Unlock()
		return nil
	}
	defer f.Close()

	out := make(map[string]versionRange)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rng, name, ok := parseVersionsLine(line)
		if !ok {
			r.warnMalformed(path, lineNo, line)
			continue
		}
		out[name] = rng
	}

	r.mu.Lock()
	r.versionsCache[root] = out
	r.mu.Unlock()
	return out
}

// parseVersionsLine parses one `module: start[-end]` line, e.g.
// "os: 3.8-" or "_typeshed: 3.0-3.12" (spec.md §4.6 step 3).
func parseVersionsLine(line string) (versionRange, string, bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return versionRange{}, "", false
	}
	name := strings.TrimSpace(parts[0])
	spec := strings.TrimSpace(parts[1])
	if name == "" || spec == "" {
		return versionRange{}, "", false
	}
	bounds := strings.SplitN(spec, "-", 2)
	start, ok := parseVersion(bounds[0])
	if !ok {
		return versionRange{}, "", false
	}
	rng := versionRange{start: start}
	if len(bounds) == 2 && strings.TrimSpace(bounds[1]) != "" {
		end, ok := parseVersion(bounds[1])
		if !ok {
			return versionRange{}, "", false
		}
		rng.end, rng.hasEnd = end, true
	}
	return rng, name, true
}

func parseVersion(s string) (Version, bool) {
	s = strings.TrimSpace(s)
	maj, min, ok := strings.Cut(s, ".")
	major, err := strconv.Atoi(maj)
	if err != nil {
		return Version{}, false
	}
	if !ok {
		return Version{Major: major}, true
	}
	minor, err := strconv.Atoi(min)
	if err != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}

func (r *Resolver) warnMalformed(path string, line int, text string) {
	key := path + ":" + strconv.Itoa(line)
	r.mu.Lock()
	if r.warnedVersions[key] {
		r.mu.Unlock()
		return
	}
	r.warnedVersions[key] = true
	r.mu.Unlock()
	r.log.Warn("resolve: malformed VERSIONS entry", "path", path, "line", line, "text", text)
}
