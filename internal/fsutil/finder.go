// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FindFiles walks root inside fsys and returns the slash-separated paths of
// all regular files whose names end with extension, in lexical order.
func FindFiles(fsys fs.FS, root, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// FindFilesByExtension is FindFiles over the directory rootPath on disk. The
// returned paths are prefixed with rootPath.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	rel, err := FindFiles(os.DirFS(rootPath), ".", extension)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(rel))
	for i, p := range rel {
		files[i] = filepath.Join(rootPath, filepath.FromSlash(p))
	}
	return files, nil
}
