package optimizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// supportedExtensions lists the source image types accepted for scanning.
var supportedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// CollectImages expands the given paths into a list of image files. Files are
// accepted when their extension is supported; directories are scanned,
// recursively unless recursive is false. The returned order is the walk order
// of each input in turn.
func CollectImages(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, in := range paths {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", in, err)
		}

		if !info.IsDir() {
			if IsSupportedImage(in) {
				files = append(files, in)
			}
			continue
		}

		if recursive {
			err = filepath.WalkDir(in, func(path string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				if IsSupportedImage(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", in, err)
			}
			continue
		}

		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", in, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if IsSupportedImage(entry.Name()) {
				files = append(files, filepath.Join(in, entry.Name()))
			}
		}
	}
	return files, nil
}
