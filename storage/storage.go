package storage

import (
	"weradio/config"
)

// Folder is a logical folder category inside the storage backend.
type Folder string

const (
	FolderLibrary Folder = "library" // source audio files
	FolderCache   Folder = "cache"   // transcoded renditions
	FolderHLS     Folder = "hls"     // segment output
)

// Storage is the uniform interface over the byte store backing the track
// library. Implementations exist for the local filesystem and for MinIO
// object storage.
type Storage interface {
	// List returns relative paths of files in a folder, optionally filtered
	// by extension (lower-case, with leading dot).
	List(folder Folder, extensions map[string]bool) ([]string, error)
	Read(folder Folder, rel string) ([]byte, error)
	Write(folder Folder, rel string, data []byte, contentType string) error
	Delete(folder Folder, rel string) error
	Exists(folder Folder, rel string) (bool, error)
}

// PathResolver is implemented by backends whose files are directly reachable
// on the local filesystem. The stream engine uses it to hand ffmpeg a plain
// path instead of copying bytes around.
type PathResolver interface {
	LocalPath(folder Folder, rel string) (string, bool)
}

// New builds the storage backend selected by configuration.
func New(cfg *config.Config) (Storage, error) {
	if cfg.UseObjectStorage {
		return NewMinioStorage(cfg)
	}
	return NewLocalStorage(cfg), nil
}
