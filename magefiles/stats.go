//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// skippedDirs are never counted by Stats.
var skippedDirs = []string{"vendor", ".git", binaryDir, "magefiles", "_examples"}

// lineCount is the number of non-blank Go lines in one package directory.
type lineCount struct {
	prod, test int
}

// Stats prints non-blank Go lines per package directory, split into
// production and test lines.
func Stats() error {
	perDir := map[string]lineCount{}

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && slices.Contains(skippedDirs, path):
			return filepath.SkipDir
		case d.IsDir() || filepath.Ext(path) != ".go":
			return nil
		}

		n, err := countLines(path)
		if err != nil {
			return fmt.Errorf("counting %s: %w", path, err)
		}
		c := perDir[filepath.Dir(path)]
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		perDir[filepath.Dir(path)] = c
		return nil
	})
	if err != nil {
		return err
	}

	var total lineCount
	for _, dir := range slices.Sorted(maps.Keys(perDir)) {
		c := perDir[dir]
		fmt.Printf("%-28s %6d prod %6d test\n", dir, c.prod, c.test)
		total.prod += c.prod
		total.test += c.test
	}
	fmt.Printf("%-28s %6d prod %6d test %6d total\n", "total", total.prod, total.test, total.prod+total.test)
	return nil
}

// countLines returns the number of non-blank lines in path.
func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for line := range bytes.Lines(data) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n, nil
}
