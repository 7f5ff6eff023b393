//go:build !windows

package interop

import (
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore_capabilities"

	"github.com/gpuinterop/glvk/interop/internal/exthandle"
)

// The POSIX platform family exports opaque file descriptors. A
// descriptor is consumed by a successful import, so handles produced
// here do not retain ownership once taken.

const (
	memoryHandleType    = khr_external_memory_capabilities.ExternalMemoryHandleTypeOpaqueFD
	semaphoreHandleType = khr_external_semaphore_capabilities.ExternalSemaphoreHandleTypeOpaqueFD
)

// PlatformDeviceExtensions lists the device extensions the exporter for
// this platform requires, beyond the platform-independent ones.
func PlatformDeviceExtensions() []string {
	return []string{
		exthandle.MemoryExtensionName,
		exthandle.SemaphoreExtensionName,
	}
}

type fdExporter struct {
	device core1_0.Device
	driver exthandle.Driver
}

// NewHandleExporter builds the platform handle exporter for the device.
// The required handle-export extensions must already be active on the
// device- a missing extension is a startup-fatal capability error, not
// something to discover on the first per-frame export.
func NewHandleExporter(device core1_0.Device) (HandleExporter, error) {
	if !device.IsDeviceExtensionActive(exthandle.MemoryExtensionName) {
		return nil, errors.Newf("device extension %s is required but not active", exthandle.MemoryExtensionName)
	}
	if !device.IsDeviceExtensionActive(exthandle.SemaphoreExtensionName) {
		return nil, errors.Newf("device extension %s is required but not active", exthandle.SemaphoreExtensionName)
	}

	return &fdExporter{
		device: device,
		driver: exthandle.CreateDriverFromCore(device.Driver()),
	}, nil
}

func closeFd(raw uintptr) error {
	return syscall.Close(int(raw))
}

func (e *fdExporter) ExportMemoryHandle(memory core1_0.DeviceMemory) (*Handle, error) {
	fd, _, err := e.driver.VkGetMemoryFdKHR(e.device.Handle(), memory.Handle(), memoryHandleType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export a file descriptor for device memory")
	}

	return NewHandle(uintptr(fd), false, closeFd), nil
}

func (e *fdExporter) ExportSemaphoreHandle(semaphore core1_0.Semaphore) (*Handle, error) {
	fd, _, err := e.driver.VkGetSemaphoreFdKHR(e.device.Handle(), semaphore.Handle(), semaphoreHandleType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export a file descriptor for a semaphore")
	}

	return NewHandle(uintptr(fd), false, closeFd), nil
}
