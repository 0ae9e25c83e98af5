package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// DefaultCacheDir is where cached documents live unless configured otherwise.
const DefaultCacheDir = "api_cache/pipeline_health"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Cache stores one pretty-printed JSON document per fetched entity.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	if dir == "" {
		dir = DefaultCacheDir
	}
	return &Cache{dir: dir}
}

func (c *Cache) Dir() string { return c.dir }

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

// Load decodes the document stored under key into v. It reports false when
// no document exists.
func (c *Cache) Load(key string, v any) (bool, error) {
	raw, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", key, err)
	}
	return true, nil
}

// Save writes v under key, creating the cache directory on first use.
func (c *Cache) Save(key string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode cache %s: %w", key, err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(c.path(key), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	return nil
}

func repoKey(name string) string           { return "repo_" + name }
func branchKey(name, branch string) string { return "branch_" + name + "_" + branch }
func teamKey(slug string) string           { return "team_" + slug }
func teamReposKey(slug string) string      { return "team_repos_" + slug }
