package utils

import (
	"path/filepath"
	"strings"
)

// AudioExtensions lists the playable source formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
}

// IsAudioFile reports whether the filename has a supported audio extension.
func IsAudioFile(name string) bool {
	return AudioExtensions[strings.ToLower(filepath.Ext(name))]
}

// ValidateFilename rejects names that could escape the serving directory.
func ValidateFilename(name string) bool {
	if name == "" {
		return false
	}
	for _, bad := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(name, bad) {
			return false
		}
	}
	return true
}

// ValidateRelPath rejects track identifiers containing traversal sequences.
// Identifiers are slash-separated paths relative to the library root.
func ValidateRelPath(rel string) bool {
	if rel == "" || strings.ContainsAny(rel, "\\\x00") {
		return false
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." || part == "" {
			return false
		}
	}
	return true
}

// SanitizeFilename replaces traversal characters so an uploaded name can be
// stored safely.
func SanitizeFilename(name string) string {
	for _, bad := range []string{"..", "/", "\\", "\x00"} {
		name = strings.ReplaceAll(name, bad, "_")
	}
	return strings.TrimSpace(name)
}
