package optimizer

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestCollectImagesRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "b.JPG"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.webp"))
	touch(t, filepath.Join(dir, "sub", "deep", "d.jpeg"))

	files, err := CollectImages([]string{dir}, true)
	if err != nil {
		t.Fatalf("CollectImages: %v", err)
	}
	if len(files) != 4 {
		t.Fatalf("got %d files, want 4: %v", len(files), files)
	}
}

func TestCollectImagesNonRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "sub", "c.webp"))

	files, err := CollectImages([]string{dir}, false)
	if err != nil {
		t.Fatalf("CollectImages: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1: %v", len(files), files)
	}
	if files[0] != filepath.Join(dir, "a.png") {
		t.Errorf("unexpected file: %s", files[0])
	}
}

func TestCollectImagesSingleFile(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	touch(t, img)

	files, err := CollectImages([]string{img}, true)
	if err != nil {
		t.Fatalf("CollectImages: %v", err)
	}
	if len(files) != 1 || files[0] != img {
		t.Errorf("got %v, want [%s]", files, img)
	}
}

func TestCollectImagesMissingPath(t *testing.T) {
	if _, err := CollectImages([]string{filepath.Join(t.TempDir(), "nope")}, true); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestIsSupportedImage(t *testing.T) {
	supported := []string{"a.png", "b.jpg", "c.JPEG", "d.webp"}
	for _, name := range supported {
		if !IsSupportedImage(name) {
			t.Errorf("IsSupportedImage(%q) = false, want true", name)
		}
	}
	unsupported := []string{"a.gif", "b.tiff", "c.txt", "noext"}
	for _, name := range unsupported {
		if IsSupportedImage(name) {
			t.Errorf("IsSupportedImage(%q) = true, want false", name)
		}
	}
}
