// Package cache stores model responses on disk so interrupted runs can
// be resumed without re-querying a hosted backend.
package cache

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"popeval/pkg/core"
)

const defaultTTL = 7 * 24 * time.Hour

type Cache struct {
	Dir string
	TTL time.Duration
}

func New(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".popeval", "cache")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Cache{Dir: dir, TTL: ttl}, nil
}

type cacheEntry struct {
	Response  core.Response `json:"response"`
	CachedAt  time.Time     `json:"cached_at"`
	ModelName string        `json:"model_name"`
}

// key folds the model, the image content, the prompt, and every
// generation knob into a single digest so a changed option never
// serves a stale answer.
func key(modelName string, pixels core.PixelValues, prompt string, opts core.GenerateOptions) string {
	h := sha256.New()
	for _, part := range []string{modelName, prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(pixels.Size))
	h.Write(size[:])
	for _, v := range pixels.Data {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(int32(v*1e4)))
		h.Write(buf[:])
	}
	h.Write([]byte(strings.Join([]string{
		fmt.Sprintf("%d", opts.NumBeams),
		fmt.Sprintf("%d", opts.MinNewTokens),
		fmt.Sprintf("%d", opts.MaxNewTokens),
		fmt.Sprintf("%.4f", opts.LengthPenalty),
		fmt.Sprintf("%t", opts.DoSample),
		fmt.Sprintf("%.6f", opts.Temperature),
		fmt.Sprintf("%d", opts.Seed),
	}, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) path(k string) string {
	return filepath.Join(c.Dir, k+".json.gz")
}

func (c *Cache) Get(modelName string, pixels core.PixelValues, prompt string, opts core.GenerateOptions) (core.Response, bool) {
	k := key(modelName, pixels, prompt, opts)
	p := c.path(k)
	f, err := os.Open(p)
	if err != nil {
		return core.Response{}, false
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return core.Response{}, false
	}
	defer gz.Close()
	var e cacheEntry
	if err := json.NewDecoder(gz).Decode(&e); err != nil {
		return core.Response{}, false
	}
	if c.TTL > 0 && time.Since(e.CachedAt) > c.TTL {
		_ = os.Remove(p)
		return core.Response{}, false
	}
	return e.Response, true
}

// Put writes through a temp file and renames it into place, so ranks
// sharing one cache directory never observe a partial entry.
func (c *Cache) Put(modelName string, pixels core.PixelValues, prompt string, opts core.GenerateOptions, resp core.Response) error {
	k := key(modelName, pixels, prompt, opts)
	p := c.path(k)
	entry := cacheEntry{
		Response:  resp,
		CachedAt:  time.Now(),
		ModelName: modelName,
	}
	f, err := os.CreateTemp(c.Dir, "tmp-*.json.gz")
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(entry); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), p); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}
