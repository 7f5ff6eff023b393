package interop

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/gpuinterop/glvk/interop/internal/utils"
)

// ExportableAllocation is a dedicated device-memory allocation created
// with export info in its pNext chain, so that a shareable handle can be
// retrieved for it at any point in its lifetime. Exactly one resource is
// bound to it, always at offset 0.
type ExportableAllocation struct {
	// Mapping data
	mapReferences int
	mapData       unsafe.Pointer

	mapMutex utils.OptionalMutex
	memory   core1_0.DeviceMemory

	size            int
	memoryTypeIndex int
	hostCoherent    bool

	allocationCallbacks *driver.AllocationCallbacks
}

// Memory returns the underlying device memory object.
func (a *ExportableAllocation) Memory() core1_0.DeviceMemory {
	return a.memory
}

// Size returns the full size of the allocation in bytes. Cross-API
// imports span this size, not the size of the bound resource.
func (a *ExportableAllocation) Size() int {
	return a.size
}

// MemoryTypeIndex returns the memory type the allocation was made from.
func (a *ExportableAllocation) MemoryTypeIndex() int {
	return a.memoryTypeIndex
}

// IsHostCoherent indicates whether mapped writes reach the device
// without an explicit flush.
func (a *ExportableAllocation) IsHostCoherent() bool {
	return a.hostCoherent
}

// Map returns a host pointer to the allocation's memory, mapping it on
// first use. Calls nest, so each Map must be paired with an Unmap.
func (a *ExportableAllocation) Map() (unsafe.Pointer, common.VkResult, error) {
	a.mapMutex.Lock()
	defer a.mapMutex.Unlock()

	if a.mapReferences > 0 {
		a.mapReferences++
		if a.mapData == nil {
			return nil, core1_0.VKErrorUnknown, errors.New("the allocation is showing existing memory mapping references, but no mapped memory")
		}
		return a.mapData, core1_0.VKSuccess, nil
	}

	mappedData, result, err := a.memory.Map(0, a.size, 0)
	if err != nil {
		return nil, result, err
	}

	a.mapData = mappedData
	a.mapReferences = 1
	return mappedData, result, nil
}

// Unmap releases one mapping reference, unmapping the memory when the
// last reference is released.
func (a *ExportableAllocation) Unmap() error {
	a.mapMutex.Lock()
	defer a.mapMutex.Unlock()

	if a.mapReferences <= 0 {
		err := errors.New("attempted to unmap an allocation with no active mapping")
		debugFail(err)
		return err
	}

	a.mapReferences--
	if a.mapReferences == 0 {
		a.memory.Unmap()
		a.mapData = nil
	}

	return nil
}

// WriteData copies data into the mapped allocation at the provided
// offset, mapping and unmapping around the copy. The allocation must be
// host-visible.
func (a *ExportableAllocation) WriteData(data []byte, offset int) (common.VkResult, error) {
	if offset+len(data) > a.size {
		return core1_0.VKErrorUnknown, errors.Newf("write of %d bytes at offset %d overruns an allocation of %d bytes", len(data), offset, a.size)
	}

	ptr, res, err := a.Map()
	if err != nil {
		return res, err
	}

	dst := unsafe.Slice((*byte)(ptr), a.size)
	copy(dst[offset:], data)

	return res, a.Unmap()
}

func (a *ExportableAllocation) free() {
	a.mapMutex.Lock()
	defer a.mapMutex.Unlock()

	if a.mapReferences > 0 {
		a.memory.Unmap()
		a.mapData = nil
		a.mapReferences = 0
	}

	a.memory.Free(a.allocationCallbacks)
}
