package interop

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
)

// SharedBuffer is a single region of device memory visible through two
// views, a Vulkan buffer and a GL buffer. Writes made through either
// view land in the same memory. Both views are created together and
// destroyed together.
type SharedBuffer struct {
	allocator *Allocator

	buffer     core1_0.Buffer
	allocation *ExportableAllocation
	glBuffer   glext.Buffer

	size      int
	destroyed bool
}

// CreateSharedBuffer creates a buffer of the requested size, backs it
// with a dedicated exportable allocation, and imports that allocation as
// a GL buffer. When hostVisible is set the allocation is made from a
// host-visible, host-coherent memory type so it can be written through
// Map.
func (a *Allocator) CreateSharedBuffer(size int, usage core1_0.BufferUsageFlags, hostVisible bool) (*SharedBuffer, common.VkResult, error) {
	if size <= 0 {
		return nil, core1_0.VKErrorUnknown, errors.Newf("attempted to create a shared buffer with invalid size %d", size)
	}

	bufferInfo := core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	}

	// The handle type has to be declared at buffer creation as well as at
	// allocation
	externalInfo := khr_external_memory.ExternalMemoryBufferCreateInfo{
		HandleTypes: memoryHandleType,
	}
	bufferInfo.Next = externalInfo

	buffer, res, err := a.device.CreateBuffer(a.allocationCallbacks, bufferInfo)
	if err != nil {
		return nil, res, err
	}

	requiredFlags := core1_0.MemoryPropertyDeviceLocal
	if hostVisible {
		requiredFlags = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
	}

	allocation, res, err := a.AllocateExportable(*buffer.MemoryRequirements(), requiredFlags, buffer, nil)
	if err != nil {
		buffer.Destroy(a.allocationCallbacks)
		return nil, res, err
	}

	res, err = buffer.BindBufferMemory(allocation.Memory(), 0)
	if err != nil {
		a.FreeAllocation(allocation)
		buffer.Destroy(a.allocationCallbacks)
		return nil, res, err
	}

	memoryObject, err := a.cache.Acquire(allocation.Memory(), allocation.Size())
	if err != nil {
		a.FreeAllocation(allocation)
		buffer.Destroy(a.allocationCallbacks)
		return nil, core1_0.VKErrorUnknown, err
	}

	glBuffer, err := a.gl.CreateBuffer()
	if err == nil {
		// The GL view spans the resource, not the full allocation
		err = a.gl.BufferStorage(glBuffer, size, memoryObject, 0)
	}
	if err != nil {
		if glBuffer != 0 {
			a.gl.DeleteBuffer(glBuffer)
		}
		releaseErr := a.cache.ReleaseMemoryObject(allocation.Memory())
		if releaseErr != nil {
			debugFail(releaseErr)
		}
		a.FreeAllocation(allocation)
		buffer.Destroy(a.allocationCallbacks)
		return nil, core1_0.VKErrorUnknown, err
	}

	return &SharedBuffer{
		allocator: a,

		buffer:     buffer,
		allocation: allocation,
		glBuffer:   glBuffer,

		size: size,
	}, res, nil
}

// VulkanBuffer returns the Vulkan view of the shared memory.
func (b *SharedBuffer) VulkanBuffer() core1_0.Buffer {
	return b.buffer
}

// GLBuffer returns the GL view of the shared memory.
func (b *SharedBuffer) GLBuffer() glext.Buffer {
	return b.glBuffer
}

// Allocation returns the exportable allocation backing both views.
func (b *SharedBuffer) Allocation() *ExportableAllocation {
	return b.allocation
}

func (b *SharedBuffer) Size() int {
	return b.size
}

// Map returns a host pointer to the shared memory. The buffer must have
// been created hostVisible.
func (b *SharedBuffer) Map() (unsafe.Pointer, common.VkResult, error) {
	return b.allocation.Map()
}

func (b *SharedBuffer) Unmap() error {
	return b.allocation.Unmap()
}

// WriteData copies data into the shared memory at the provided offset.
// On a host-coherent allocation the GL view observes the write without
// further synchronization.
func (b *SharedBuffer) WriteData(data []byte, offset int) (common.VkResult, error) {
	return b.allocation.WriteData(data, offset)
}

// Destroy tears down both views and frees the backing allocation.
// Destroying a SharedBuffer twice is a usage error.
func (b *SharedBuffer) Destroy() error {
	if b.destroyed {
		err := errors.New("attempted to destroy a shared buffer that was already destroyed")
		debugFail(err)
		return err
	}
	b.destroyed = true

	a := b.allocator
	a.gl.DeleteBuffer(b.glBuffer)
	err := a.cache.ReleaseMemoryObject(b.allocation.Memory())
	b.buffer.Destroy(a.allocationCallbacks)
	a.FreeAllocation(b.allocation)
	return err
}
