package vision

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
)

type cacheEntry struct {
	img     image.Image
	modTime time.Time
	kernels map[float64]*kernel
}

// TemplateCache is a read-through cache of decoded templates. Entries are
// revalidated against the file modification time on every lookup, so a
// template replaced on disk is picked up without a restart.
type TemplateCache struct {
	fs      afero.Fs
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewTemplateCache returns a cache reading from fs. A nil fs uses the OS
// filesystem.
func NewTemplateCache(fs afero.Fs) *TemplateCache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &TemplateCache{fs: fs, entries: make(map[string]*cacheEntry)}
}

// Exists reports whether path is present, without loading it.
func (c *TemplateCache) Exists(path string) bool {
	_, err := c.fs.Stat(path)
	return err == nil
}

// Image returns the decoded template at path.
func (c *TemplateCache) Image(path string) (image.Image, error) {
	e, err := c.entry(path)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

// kernel returns the prepared matching kernel of path at scale.
func (c *TemplateCache) kernel(path string, scale float64) (*kernel, error) {
	e, err := c.entry(path)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	k, ok := e.kernels[scale]
	c.mu.RUnlock()
	if ok {
		return k, nil
	}

	k = newKernel(e.img, scale)
	c.mu.Lock()
	e.kernels[scale] = k
	c.mu.Unlock()
	return k, nil
}

func (c *TemplateCache) entry(path string) (*cacheEntry, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		c.Invalidate(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateDecode, path, err)
	}

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && e.modTime.Equal(info.ModTime()) {
		return e, nil
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateDecode, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateDecode, path, err)
	}

	e = &cacheEntry{img: img, modTime: info.ModTime(), kernels: make(map[float64]*kernel)}
	c.mu.Lock()
	c.entries[path] = e
	c.mu.Unlock()
	return e, nil
}

// Invalidate drops path from the cache.
func (c *TemplateCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
