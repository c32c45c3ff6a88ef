package morph

import (
	"os"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"bottleswap-server/internal/platform/errors"
)

// ReferenceCache loads the campaign bottle image once per process and serves
// the bytes read-only afterwards. Load once, never invalidate: concurrent
// readers need no locking after the first hit.
type ReferenceCache struct {
	path   string
	group  singleflight.Group
	loaded atomic.Pointer[[]byte]
}

// NewReferenceCache points the cache at an image on disk. Nothing is read
// until the first Get.
func NewReferenceCache(path string) *ReferenceCache {
	return &ReferenceCache{path: path}
}

// Get returns the reference image bytes, reading the file on first use.
// Concurrent first calls collapse into a single read.
func (c *ReferenceCache) Get() ([]byte, error) {
	if data := c.loaded.Load(); data != nil {
		return *data, nil
	}

	result, err, _ := c.group.Do("reference", func() (interface{}, error) {
		if data := c.loaded.Load(); data != nil {
			return *data, nil
		}
		data, err := os.ReadFile(c.path)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfig, "morph.reference", "read reference image", err)
		}
		c.loaded.Store(&data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
