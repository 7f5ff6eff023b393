package interop

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

// HandleExporter retrieves OS-level handles for exportable Vulkan
// objects, using the single opaque handle type this platform supports.
// One implementation exists per platform family (file descriptors or
// win32 kernel handles), selected at compile time; the rest of the core
// is written against this interface.
//
// Each returned Handle identifies the same physical memory or sync
// object to the OS. Exporting a memory handle more than once for the
// same device memory must be avoided by the caller- the memory-object
// cache exists to guarantee that.
type HandleExporter interface {
	ExportMemoryHandle(memory core1_0.DeviceMemory) (*Handle, error)
	ExportSemaphoreHandle(semaphore core1_0.Semaphore) (*Handle, error)
}
