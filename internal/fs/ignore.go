package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-source ignore file, read from the source root.
const IgnoreFileName = ".roninignore"

// ParseIgnoreFile reads an ignore file and returns its patterns.
// Blank lines and lines starting with '#' are skipped.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

// LoadIgnorePatterns combines configured patterns with those from the
// source root's ignore file, configured patterns first.
func LoadIgnorePatterns(sourceRoot string, configured []string) ([]string, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(sourceRoot, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(configured)+len(fromFile))
	for _, p := range configured {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return append(patterns, fromFile...), nil
}
