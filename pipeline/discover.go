package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Discover returns the XML files below the given roots, recursively. Files of
// each root are in lexical order, roots in the order given. A missing root
// contributes nothing.
func Discover(roots ...string) ([]string, error) {
	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return err
			}
			if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".xml") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return files, err
		}
	}
	return files, nil
}
