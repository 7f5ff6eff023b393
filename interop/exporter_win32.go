//go:build windows

package interop

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore_capabilities"
	"golang.org/x/sys/windows"

	"github.com/gpuinterop/glvk/interop/internal/exthandle"
)

// win32 exports duplicated kernel object handles. Importing one does
// not consume it, so every handle produced here must be closed by this
// process once the importing side no longer needs it.

const (
	memoryHandleType    = khr_external_memory_capabilities.ExternalMemoryHandleTypeOpaqueWin32
	semaphoreHandleType = khr_external_semaphore_capabilities.ExternalSemaphoreHandleTypeOpaqueWin32
)

// PlatformDeviceExtensions lists the device extensions the exporter for
// this platform requires, beyond the platform-independent ones.
func PlatformDeviceExtensions() []string {
	return []string{
		exthandle.MemoryExtensionName,
		exthandle.SemaphoreExtensionName,
	}
}

type win32Exporter struct {
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

	return &win32Exporter{
		device: device,
		driver: exthandle.CreateDriverFromCore(device.Driver()),
	}, nil
}

func closeKernelHandle(raw uintptr) error {
	return windows.CloseHandle(windows.Handle(raw))
}

func (e *win32Exporter) ExportMemoryHandle(memory core1_0.DeviceMemory) (*Handle, error) {
	handle, _, err := e.driver.VkGetMemoryWin32HandleKHR(e.device.Handle(), memory.Handle(), memoryHandleType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export a win32 handle for device memory")
	}

	return NewHandle(handle, true, closeKernelHandle), nil
}

func (e *win32Exporter) ExportSemaphoreHandle(semaphore core1_0.Semaphore) (*Handle, error) {
	handle, _, err := e.driver.VkGetSemaphoreWin32HandleKHR(e.device.Handle(), semaphore.Handle(), semaphoreHandleType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export a win32 handle for a semaphore")
	}

	return NewHandle(handle, true, closeKernelHandle), nil
}
