package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/arbor/pkg/loader"
)

// Project is a directory holding an .arbor/ directory.
type Project struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// HasConfig reports whether .arbor/config.yaml exists.
	HasConfig bool `json:"has_config"`
}

// ScanProjects walks root up to maxDepth levels deep (3 if <= 0) and
// returns the directories that contain .arbor/. Hidden directories are
// skipped and projects are not descended into.
func ScanProjects(root string, maxDepth int) []Project {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	root = expandHome(root)
	var results []Project
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if depth > maxDepth {
			return filepath.SkipDir
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if isDir(filepath.Join(path, loader.StateDir)) {
			results = append(results, Project{
				Name:      filepath.Base(path),
				Path:      path,
				HasConfig: isFile(filepath.Join(path, loader.StateDir, FileName)),
			})
			return filepath.SkipDir
		}
		return nil
	})
	return results
}

// FindProjectRoot walks up from dir looking for an .arbor/ directory. It
// does not go above the home directory.
func FindProjectRoot(dir string) (string, bool) {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return "", false
		}
	}
	dir, _ = filepath.Abs(dir)
	home, _ := os.UserHomeDir()
	for {
		if isDir(filepath.Join(dir, loader.StateDir)) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && dir == home) {
			return "", false
		}
		dir = parent
	}
}

// Discover locates and loads the project configuration above dir. Without
// a config file it returns Default() rooted at the project directory, or
// at dir when no project exists.
func Discover(dir string) (*Config, error) {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	root, ok := FindProjectRoot(dir)
	if ok {
		path := filepath.Join(root, loader.StateDir, FileName)
		if isFile(path) {
			return LoadConfig(path)
		}
	} else {
		root, _ = filepath.Abs(dir)
	}
	cfg := Default()
	cfg.root = root
	return &cfg, nil
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~"); ok && (rest == "" || rest[0] == '/') {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
