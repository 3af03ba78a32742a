package loader

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// StateDir is the per-project directory holding config, saved tree state
// and the debug log.
const StateDir = ".arbor"

const ignoreComment = "# arbor local config and saved state"

// EnsureIgnored makes sure dir (e.g. StateDir) is listed in the project's
// .gitignore, creating the file if needed. It is idempotent and keeps the
// existing content. An empty projectDir means the working directory.
func EnsureIgnored(projectDir, dir string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}
	path := filepath.Join(projectDir, ".gitignore")

	present, err := isIgnored(path, dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if present {
		return nil
	}
	return appendIgnore(path, dir+"/")
}

// isIgnored scans a .gitignore for a line covering dir.
func isIgnored(path, dir string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coversDir(line, dir) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// coversDir matches dir, dir/, dir/*, dir/** and dir/**/*, optionally
// anchored with a leading slash.
func coversDir(line, dir string) bool {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(line, "/"), dir)
	if !ok {
		return false
	}
	switch rest {
	case "", "/", "/*", "/**", "/**/*":
		return true
	}
	return false
}

func appendIgnore(path, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	var b strings.Builder
	if len(content) > 0 {
		if content[len(content)-1] != '\n' {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(ignoreComment + "\n" + pattern + "\n")
	_, err = file.WriteString(b.String())
	return err
}
