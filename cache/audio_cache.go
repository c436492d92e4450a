package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"weradio/logger"
)

// AudioCache is a capacity-bounded directory of transcoded AAC renditions.
// Files are named by the md5 of their track identifier. Eviction removes the
// least-recently-accessed files; access time is refreshed on every hit.
type AudioCache struct {
	dir string
	max int
}

// NewAudioCache creates the cache directory if needed.
func NewAudioCache(dir string, max int) (*AudioCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	if max < 1 {
		max = 1
	}
	return &AudioCache{dir: dir, max: max}, nil
}

// PathFor returns the on-disk path the rendition for id would live at.
// The file may not exist yet.
func (c *AudioCache) PathFor(id string) string {
	sum := md5.Sum([]byte(id))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".aac")
}

// Lookup returns the cached rendition path for id if present, refreshing
// its access time.
func (c *AudioCache) Lookup(id string) (string, bool) {
	path := c.PathFor(id)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		logger.Warn("刷新缓存文件访问时间失败", logger.String("path", path), logger.ErrorField(err))
	}
	return path, true
}

// Remove deletes the cached rendition for id, if any.
func (c *AudioCache) Remove(id string) error {
	err := os.Remove(c.PathFor(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clean evicts the oldest-accessed files beyond the capacity bound and
// returns how many were removed.
func (c *AudioCache) Clean() int {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.aac"))
	if err != nil {
		logger.Error("扫描音频缓存失败", logger.ErrorField(err))
		return 0
	}
	if len(matches) <= c.max {
		return 0
	}

	type cacheFile struct {
		path  string
		atime time.Time
	}
	files := make([]cacheFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{path: path, atime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].atime.Before(files[j].atime) })

	removed := 0
	for _, f := range files[:len(files)-c.max] {
		if err := os.Remove(f.path); err != nil {
			logger.Warn("删除缓存文件失败", logger.String("path", f.path), logger.ErrorField(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("音频缓存已清理", logger.Int("removed", removed))
	}
	return removed
}
