package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"weradio/config"
)

// LocalStorage stores all folders under local directories.
type LocalStorage struct {
	roots map[Folder]string
}

// NewLocalStorage creates a LocalStorage rooted at the configured data dirs.
func NewLocalStorage(cfg *config.Config) *LocalStorage {
	return &LocalStorage{roots: map[Folder]string{
		FolderLibrary: cfg.LibraryDir,
		FolderCache:   cfg.CacheDir,
		FolderHLS:     cfg.HLSDir,
	}}
}

func (s *LocalStorage) root(folder Folder) (string, error) {
	root, ok := s.roots[folder]
	if !ok {
		return "", fmt.Errorf("unknown storage folder: %s", folder)
	}
	return root, nil
}

// List walks the folder recursively and returns relative slash paths.
func (s *LocalStorage) List(folder Folder, extensions map[string]bool) ([]string, error) {
	root, err := s.root(folder)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extensions != nil && !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}
	return files, nil
}

func (s *LocalStorage) Read(folder Folder, rel string) ([]byte, error) {
	root, err := s.root(folder)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(root, rel))
}

func (s *LocalStorage) Write(folder Folder, rel string, data []byte, contentType string) error {
	root, err := s.root(folder)
	if err != nil {
		return err
	}
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	return os.WriteFile(full, data, 0644)
}

func (s *LocalStorage) Delete(folder Folder, rel string) error {
	root, err := s.root(folder)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(root, rel))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalStorage) Exists(folder Folder, rel string) (bool, error) {
	root, err := s.root(folder)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(root, rel))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// LocalPath resolves a relative path to an absolute filesystem path.
func (s *LocalStorage) LocalPath(folder Folder, rel string) (string, bool) {
	root, ok := s.roots[folder]
	if !ok {
		return "", false
	}
	return filepath.Join(root, rel), true
}
