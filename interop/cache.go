package interop

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/gpuinterop/glvk/glext"
	"github.com/gpuinterop/glvk/interop/internal/utils"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"golang.org/x/exp/slog"
)

type memoryObjectCacheEntry struct {
	object glext.MemoryObject
	refs   atomic.Int32
}

// MemoryObjectCache maps device memory objects to imported GL memory
// objects, keyed by the memory's driver identity, so that multiple
// resources bound into the same allocation share one import. Each hit
// bumps a refcount rather than re-exporting a handle, and the GL-side
// object is destroyed when the last user releases it.
//
// The cache belongs to the Allocator that created it and shares its
// locking policy.
type MemoryObjectCache struct {
	logger   *slog.Logger
	gl       glext.API
	exporter HandleExporter

	mutex   utils.OptionalMutex
	entries *swiss.Map[driver.VkDeviceMemory, *memoryObjectCacheEntry]
}

func newMemoryObjectCache(logger *slog.Logger, gl glext.API, exporter HandleExporter, useMutex bool) *MemoryObjectCache {
	return &MemoryObjectCache{
		logger:   logger,
		gl:       gl,
		exporter: exporter,
		mutex:    utils.OptionalMutex{UseMutex: useMutex},
		entries:  swiss.NewMap[driver.VkDeviceMemory, *memoryObjectCacheEntry](42),
	}
}

// Acquire returns the GL memory object imported for the provided device
// memory, importing it on first use. size must be the full size of the
// allocation, not of the resource being bound, since the import spans
// the whole allocation.
func (c *MemoryObjectCache) Acquire(memory core1_0.DeviceMemory, size int) (glext.MemoryObject, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := memory.Handle()
	entry, ok := c.entries.Get(key)
	if ok {
		entry.refs.Add(1)
		return entry.object, nil
	}

	handle, err := c.exporter.ExportMemoryHandle(memory)
	if err != nil {
		return 0, errors.Wrap(err, "failed to export a shareable handle for device memory")
	}

	object, err := c.gl.CreateMemoryObject()
	if err != nil {
		_ = handle.Release()
		return 0, err
	}

	raw, err := handle.Take()
	if err != nil {
		c.gl.DeleteMemoryObject(object)
		_ = handle.Release()
		return 0, err
	}

	err = c.gl.ImportMemory(object, size, raw)
	if err != nil {
		c.gl.DeleteMemoryObject(object)
		// The import failed, so it did not consume the raw value. Put it
		// back so Release closes the OS resource instead of leaking it.
		_ = handle.Reclaim()
		_ = handle.Release()
		return 0, errors.Wrap(err, "failed to import device memory into the consumer api")
	}

	// On handle types that are consumed by the import, this is a no-op
	err = handle.Release()
	if err != nil {
		c.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to release an exported memory handle after import",
			slog.Any("error", err),
		)
	}

	entry = &memoryObjectCacheEntry{object: object}
	entry.refs.Store(1)
	c.entries.Put(key, entry)
	return object, nil
}

// ReleaseMemoryObject drops one reference for the provided device memory,
// destroying the imported GL object when the count reaches zero. Releasing
// memory that is not in the cache is a usage error.
func (c *MemoryObjectCache) ReleaseMemoryObject(memory core1_0.DeviceMemory) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := memory.Handle()
	entry, ok := c.entries.Get(key)
	if !ok {
		err := errors.New("attempted to release device memory that has no imported memory object")
		debugFail(err)
		return err
	}

	if entry.refs.Add(-1) > 0 {
		return nil
	}

	c.gl.DeleteMemoryObject(entry.object)
	c.entries.Delete(key)
	return nil
}

// Clear force-destroys every imported memory object. It is intended for
// teardown after all shared resources have been destroyed; entries that
// are still referenced indicate leaked resources and are logged.
func (c *MemoryObjectCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries.Iter(func(key driver.VkDeviceMemory, entry *memoryObjectCacheEntry) bool {
		if refs := entry.refs.Load(); refs > 0 {
			c.logger.LogAttrs(context.Background(), slog.LevelWarn, "destroying an imported memory object that is still referenced",
				slog.Int("references", int(refs)),
			)
		}
		c.gl.DeleteMemoryObject(entry.object)
		return false
	})
	c.entries = swiss.NewMap[driver.VkDeviceMemory, *memoryObjectCacheEntry](42)
}

// Count returns the number of live imported memory objects.
func (c *MemoryObjectCache) Count() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.entries.Count()
}
