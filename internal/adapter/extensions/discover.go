package extensions

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// FindModelFiles locates data-extension model files under an extension
// pack directory. Globs match slash-separated paths relative to root;
// results are absolute and sorted.
func FindModelFiles(root string, globs []string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if len(globs) == 0 {
		globs = []string{"**/*.model.yml", "**/*.model.yaml"}
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		for _, pattern := range globs {
			matched, err := doublestar.Match(pattern, relPath)
			if err == nil && matched {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
