package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	infoFileName = "info.txt"
	imagePattern = "*.{png,jpg,jpeg}"
)

var (
	// ErrMissingInfo marks an item directory without info.txt.
	ErrMissingInfo = errors.New("info.txt not found")
	// ErrNoImages marks an item directory without any png/jpg/jpeg file.
	ErrNoImages = errors.New("no images found")
)

// ReferenceItem is one labeled item directory.
type ReferenceItem struct {
	Name        string
	Description string
	// ImagePaths are slash-separated and relative to the source root, in
	// lexical order.
	ImagePaths []string
}

// Source enumerates reference items and serves their files.
type Source interface {
	// ListItems returns item names in lexical order.
	ListItems() ([]string, error)
	// LoadItem reads the item's description and image list. It returns
	// ErrMissingInfo or ErrNoImages for incomplete items.
	LoadItem(name string) (*ReferenceItem, error)
	ReadImage(rel string) ([]byte, error)
	// Location renders rel as the path recorded in point payloads.
	Location(rel string) string
}

// FSSource reads items from an fs.FS laid out as <item>/info.txt and
// <item>/*.{png,jpg,jpeg}.
type FSSource struct {
	fsys    fs.FS
	root    string
	exclude []string
}

// NewDirSource opens a directory on disk.
func NewDirSource(root string, exclude []string) (*FSSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("data path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %s is not a directory", root)
	}
	return NewFSSource(os.DirFS(root), root, exclude)
}

// NewFSSource wraps fsys. root is only used to render payload locations.
// exclude holds doublestar patterns matched against item names.
func NewFSSource(fsys fs.FS, root string, exclude []string) (*FSSource, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &FSSource{fsys: fsys, root: root, exclude: exclude}, nil
}

func (s *FSSource) ListItems() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || s.excluded(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *FSSource) excluded(name string) bool {
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (s *FSSource) LoadItem(name string) (*ReferenceItem, error) {
	info, err := fs.ReadFile(s.fsys, path.Join(name, infoFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissingInfo
		}
		return nil, fmt.Errorf("read %s: %w", infoFileName, err)
	}

	entries, err := fs.ReadDir(s.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	item := &ReferenceItem{Name: name, Description: string(info)}
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		item.ImagePaths = append(item.ImagePaths, path.Join(name, entry.Name()))
	}
	if len(item.ImagePaths) == 0 {
		return nil, ErrNoImages
	}
	sort.Strings(item.ImagePaths)
	return item, nil
}

func (s *FSSource) ReadImage(rel string) ([]byte, error) {
	return fs.ReadFile(s.fsys, rel)
}

func (s *FSSource) Location(rel string) string {
	if s.root == "" {
		return rel
	}
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// IsImageFile reports whether name has a png, jpg or jpeg extension in any case.
func IsImageFile(name string) bool {
	ok, _ := doublestar.Match(imagePattern, strings.ToLower(name))
	return ok
}
