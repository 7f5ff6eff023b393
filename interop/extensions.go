package interop

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore_capabilities"
	"github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2"
)

// ExtensionData captures which interop-relevant capabilities are active
// on the instance and device this core was built against. It is probed
// once at startup; every capability here is either satisfied by core
// 1.1 or by the extension of the same name.
type ExtensionData struct {
	ExternalMemoryCapabilities    bool
	ExternalSemaphoreCapabilities bool
	ExternalMemory                bool
	ExternalSemaphore             bool
	DedicatedAllocations          bool
}

// RequiredInstanceExtensions lists the instance extensions the core
// needs when the instance is created below core 1.1.
func RequiredInstanceExtensions() []string {
	return []string{
		khr_external_memory_capabilities.ExtensionName,
		khr_external_semaphore_capabilities.ExtensionName,
	}
}

// RequiredDeviceExtensions lists the device extensions the core needs
// when the device is created below core 1.1, including the
// platform-specific handle-export pair.
func RequiredDeviceExtensions() []string {
	extensions := []string{
		khr_external_memory.ExtensionName,
		khr_external_semaphore.ExtensionName,
	}
	return append(extensions, PlatformDeviceExtensions()...)
}

func NewExtensionData(device core1_0.Device, physicalDevice core1_0.PhysicalDevice, instance core1_0.Instance) *ExtensionData {
	data := &ExtensionData{}

	// Apply device capabilities- add core or extension capabilities
	device11 := core1_1.PromoteDevice(device)
	if device11 != nil {
		// Core 1.1 active - that means we can use khr_external_memory,
		// khr_external_semaphore, and khr_dedicated_allocation
		data.ExternalMemory = true
		data.ExternalSemaphore = true
		data.DedicatedAllocations = true
	}

	physicalDevice11 := core1_1.PromoteInstanceScopedPhysicalDevice(physicalDevice)
	if physicalDevice11 != nil {
		// Core 1.1 active on the instance side - the external capability
		// queries are available without their instance extensions
		data.ExternalMemoryCapabilities = true
		data.ExternalSemaphoreCapabilities = true
	}

	if !data.ExternalMemoryCapabilities && instance.IsInstanceExtensionActive(khr_external_memory_capabilities.ExtensionName) {
		data.ExternalMemoryCapabilities = true
	}

	if !data.ExternalSemaphoreCapabilities && instance.IsInstanceExtensionActive(khr_external_semaphore_capabilities.ExtensionName) {
		data.ExternalSemaphoreCapabilities = true
	}

	if !data.ExternalMemory && device.IsDeviceExtensionActive(khr_external_memory.ExtensionName) {
		data.ExternalMemory = true
	}

	if !data.ExternalSemaphore && device.IsDeviceExtensionActive(khr_external_semaphore.ExtensionName) {
		data.ExternalSemaphore = true
	}

	// khr_dedicated_allocation if khr_get_memory_requirements2 is active
	// but core 1.1 is not
	if !data.DedicatedAllocations &&
		device.IsDeviceExtensionActive(khr_get_memory_requirements2.ExtensionName) &&
		device.IsDeviceExtensionActive(khr_dedicated_allocation.ExtensionName) {
		data.DedicatedAllocations = true
	}

	return data
}

// CheckInteropSupport returns a capability-absence error naming the
// first missing requirement, so the application can exit cleanly at
// startup rather than fail deeper in the frame loop.
func (d *ExtensionData) CheckInteropSupport() error {
	if !d.ExternalMemoryCapabilities {
		return errors.Newf("instance capability %s is required for cross-API sharing", khr_external_memory_capabilities.ExtensionName)
	}
	if !d.ExternalSemaphoreCapabilities {
		return errors.Newf("instance capability %s is required for cross-API sharing", khr_external_semaphore_capabilities.ExtensionName)
	}
	if !d.ExternalMemory {
		return errors.Newf("device capability %s is required for cross-API sharing", khr_external_memory.ExtensionName)
	}
	if !d.ExternalSemaphore {
		return errors.Newf("device capability %s is required for cross-API sharing", khr_external_semaphore.ExtensionName)
	}
	return nil
}
