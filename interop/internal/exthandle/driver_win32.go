//go:build windows

package exthandle

/*
#define VK_USE_PLATFORM_WIN32_KHR
#include <stdlib.h>
#include <windows.h>
#include "../vulkan/vulkan.h"

VkResult cgoGetMemoryWin32HandleKHR(PFN_vkGetMemoryWin32HandleKHR fn, VkDevice device, VkMemoryGetWin32HandleInfoKHR *pGetWin32HandleInfo, HANDLE *pHandle) {
	return fn(device, pGetWin32HandleInfo, pHandle);
}

VkResult cgoGetSemaphoreWin32HandleKHR(PFN_vkGetSemaphoreWin32HandleKHR fn, VkDevice device, VkSemaphoreGetWin32HandleInfoKHR *pGetWin32HandleInfo, HANDLE *pHandle) {
	return fn(device, pGetWin32HandleInfo, pHandle);
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
	// permits exporting device memory as an NT kernel object handle.
	MemoryExtensionName = "VK_KHR_external_memory_win32"
	// SemaphoreExtensionName is the name of the device extension that
	// permits exporting semaphores as an NT kernel object handle.
	SemaphoreExtensionName = "VK_KHR_external_semaphore_win32"
)

type Driver interface {
	VkGetMemoryWin32HandleKHR(device driver.VkDevice, memory driver.VkDeviceMemory, handleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags) (uintptr, common.VkResult, error)
	VkGetSemaphoreWin32HandleKHR(device driver.VkDevice, semaphore driver.VkSemaphore, handleType khr_external_semaphore_capabilities.ExternalSemaphoreHandleTypeFlags) (uintptr, common.VkResult, error)
}

type CDriver struct {
	coreDriver driver.Driver

	getMemoryWin32HandleFunc    C.PFN_vkGetMemoryWin32HandleKHR
	getSemaphoreWin32HandleFunc C.PFN_vkGetSemaphoreWin32HandleKHR
}

func CreateDriverFromCore(coreDriver driver.Driver) *CDriver {
	arena := cgoparam.GetAlloc()
	defer cgoparam.ReturnAlloc(arena)

	return &CDriver{
		coreDriver: coreDriver,

		getMemoryWin32HandleFunc:    (C.PFN_vkGetMemoryWin32HandleKHR)(coreDriver.LoadProcAddr((*driver.Char)(arena.CString("vkGetMemoryWin32HandleKHR")))),
		getSemaphoreWin32HandleFunc: (C.PFN_vkGetSemaphoreWin32HandleKHR)(coreDriver.LoadProcAddr((*driver.Char)(arena.CString("vkGetSemaphoreWin32HandleKHR")))),
	}
}

func (d *CDriver) VkGetMemoryWin32HandleKHR(device driver.VkDevice, memory driver.VkDeviceMemory, handleType khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags) (uintptr, common.VkResult, error) {
	if d.getMemoryWin32HandleFunc == nil {
		panic("attempt to call extension method vkGetMemoryWin32HandleKHR when extension not present")
	}

	var getHandleInfo C.VkMemoryGetWin32HandleInfoKHR
	getHandleInfo.sType = C.VK_STRUCTURE_TYPE_MEMORY_GET_WIN32_HANDLE_INFO_KHR
	getHandleInfo.pNext = nil
	getHandleInfo.memory = C.VkDeviceMemory(unsafe.Pointer(memory))
	getHandleInfo.handleType = C.VkExternalMemoryHandleTypeFlagBits(handleType)

	var handle C.HANDLE
	res := common.VkResult(C.cgoGetMemoryWin32HandleKHR(
		d.getMemoryWin32HandleFunc,
		C.VkDevice(unsafe.Pointer(device)),
		&getHandleInfo,
		&handle,
	))
	return uintptr(unsafe.Pointer(handle)), res, res.ToError()
}

func (d *CDriver) VkGetSemaphoreWin32HandleKHR(device driver.VkDevice, semaphore driver.VkSemaphore, handleType khr_external_semaphore_capabilities.ExternalSemaphoreHandleTypeFlags) (uintptr, common.VkResult, error) {
	if d.getSemaphoreWin32HandleFunc == nil {
		panic("attempt to call extension method vkGetSemaphoreWin32HandleKHR when extension not present")
	}

	var getHandleInfo C.VkSemaphoreGetWin32HandleInfoKHR
	getHandleInfo.sType = C.VK_STRUCTURE_TYPE_SEMAPHORE_GET_WIN32_HANDLE_INFO_KHR
	getHandleInfo.pNext = nil
	getHandleInfo.semaphore = C.VkSemaphore(unsafe.Pointer(semaphore))
	getHandleInfo.handleType = C.VkExternalSemaphoreHandleTypeFlagBits(handleType)

	var handle C.HANDLE
	res := common.VkResult(C.cgoGetSemaphoreWin32HandleKHR(
		d.getSemaphoreWin32HandleFunc,
		C.VkDevice(unsafe.Pointer(device)),
		&getHandleInfo,
		&handle,
	))
	return uintptr(unsafe.Pointer(handle)), res, res.ToError()
}
