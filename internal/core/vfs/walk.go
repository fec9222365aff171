package vfs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ignoreNames are the ignore files Walk reads in each directory when
// standardFilters is set.
var ignoreNames = []string{".gitignore", ".ignore"}

// Walk enumerates files under root. When standardFilters is set, entries
// matched by a `.gitignore`/`.ignore` file found in the same directory (or
// an ancestor) are skipped, in the spirit of the teacher's directory scan
// in cue/load/fs.go. When ignoreHidden is set, dotfiles/dot-directories
// are skipped outright.
func (s *Store) Walk(root string, standardFilters, ignoreHidden bool) ([]FileID, error) {
	var ids []FileID
	patterns := map[string][]string{}

	var loadIgnore func(dir string) []string
	loadIgnore = func(dir string) []string {
		if pats, ok := patterns[dir]; ok {
			return pats
		}
		var pats []string
		for _, name := range ignoreNames {
			f, err := os.Open(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				pats = append(pats, line)
			}
			f.Close()
		}
		patterns[dir] = pats
		return pats
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := d.Name()
		if path != root && ignoreHidden && strings.HasPrefix(base, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if standardFilters {
			dir := filepath.Dir(path)
			for _, pat := range loadIgnore(dir) {
				if matched, _ := filepath.Match(pat, base); matched {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
		}
		if d.IsDir() {
			return nil
		}
		ids = append(ids, s.FileForPath(path, KindFirstParty))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// IsProjectStructureFile reports whether base is one of the recognized
// project-structure file names whose change triggers a full project
// reload (spec.md §6).
func IsProjectStructureFile(base string) bool {
	switch base {
	case ".gitignore", ".ignore", "ruff.toml", ".ruff.toml", "pyproject.toml":
		return true
	default:
		return false
	}
}
