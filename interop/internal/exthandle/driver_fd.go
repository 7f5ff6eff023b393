//go:build !windows

package exthandle

/*
#include <stdlib.h>
#include "../vulkan/vulkan.h"

VkResult cgoGetMemoryFdKHR(PFN_vkGetMemoryFdKHR fn, VkDevice device, VkMemoryGetFdInfoKHR *pGetFdInfo, int *pFd) {
	return fn(device, pGetFdInfo, pFd);
}

VkResult cgoGetSemaphoreFdKHR(PFN_vkGetSemaphoreFdKHR fn, VkDevice device, VkSemaphoreGetFdInfoKHR *pGetFdInfo, int *pFd) {
	return fn(device, pGetFdInfo, pFd);
}
*/
import "C"
import (
	"unsafe"

	"github.com/CannibalVox/cgoparam"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore_capabilities"

	_ "github.com/gpuinterop/glvk/interop/internal/vulkan"
)

const (
	// MemoryExtensionName is the name of the device extension that
	// permits exporting device memory as an opaque file descriptor.
	MemoryExtensionName = "VK_KHR_external_memory_fd"
	// SemaphoreExtensionName is the name of the device extension that
	// permits exporting semaphores as opaque file descriptors.
	SemaphoreExtensionName = "VK_KHR_external_semaphore_fd"
)

type Driver interface {
	VkGetMemoryFdKHR(device driver.VkDevice, memory driver.VkDeviceMemory, handleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags) (int, common.VkResult, error)
	VkGetSemaphoreFdKHR(device driver.VkDevice, semaphore driver.VkSemaphore, handleType khr_external_semaphore_capabilities.ExternalSemaphoreHandleTypeFlags) (int, common.VkResult, error)
}

type CDriver struct {
	coreDriver driver.Driver

	getMemoryFdFunc    C.PFN_vkGetMemoryFdKHR
	getSemaphoreFdFunc C.PFN_vkGetSemaphoreFdKHR
}

func CreateDriverFromCore(coreDriver driver.Driver) *CDriver {
	arena := cgoparam.GetAlloc()
	defer cgoparam.ReturnAlloc(arena)

	return &CDriver{
		coreDriver: coreDriver,

		getMemoryFdFunc:    (C.PFN_vkGetMemoryFdKHR)(coreDriver.LoadProcAddr((*driver.Char)(arena.CString("vkGetMemoryFdKHR")))),
		getSemaphoreFdFunc: (C.PFN_vkGetSemaphoreFdKHR)(coreDriver.LoadProcAddr((*driver.Char)(arena.CString("vkGetSemaphoreFdKHR")))),
	}
}

func (d *CDriver) VkGetMemoryFdKHR(device driver.VkDevice, memory driver.VkDeviceMemory, handleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags) (int, common.VkResult, error) {
	if d.getMemoryFdFunc == nil {
		panic("attempt to call extension method vkGetMemoryFdKHR when extension not present")
	}

	var getFdInfo C.VkMemoryGetFdInfoKHR
	getFdInfo.sType = C.VK_STRUCTURE_TYPE_MEMORY_GET_FD_INFO_KHR
	getFdInfo.pNext = nil
	getFdInfo.memory = C.VkDeviceMemory(unsafe.Pointer(memory))
	getFdInfo.handleType = C.VkExternalMemoryHandleTypeFlagBits(handleType)

	var fd C.int
	res := common.VkResult(C.cgoGetMemoryFdKHR(
		d.getMemoryFdFunc,
		C.VkDevice(unsafe.Pointer(device)),
		&getFdInfo,
		&fd,
	))
	return int(fd), res, res.ToError()
}

func (d *CDriver) VkGetSemaphoreFdKHR(device driver.VkDevice, semaphore driver.VkSemaphore, handleType khr_external_semaphore_capabilities.ExternalSemaphoreHandleTypeFlags) (int, common.VkResult, error) {
	if d.getSemaphoreFdFunc == nil {
		panic("attempt to call extension method vkGetSemaphoreFdKHR when extension not present")
	}

	var getFdInfo C.VkSemaphoreGetFdInfoKHR
	getFdInfo.sType = C.VK_STRUCTURE_TYPE_SEMAPHORE_GET_FD_INFO_KHR
	getFdInfo.pNext = nil
	getFdInfo.semaphore = C.VkSemaphore(unsafe.Pointer(semaphore))
	getFdInfo.handleType = C.VkExternalSemaphoreHandleTypeFlagBits(handleType)

	var fd C.int
	res := common.VkResult(C.cgoGetSemaphoreFdKHR(
		d.getSemaphoreFdFunc,
		C.VkDevice(unsafe.Pointer(device)),
		&getFdInfo,
		&fd,
	))
	return int(fd), res, res.ToError()
}
