package interop

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore_capabilities"
	"github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2"
	"go.uber.org/mock/gomock"
)

func TestExtensionsNew_NoExtensions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	instance, physicalDevice, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{}, []string{})

	extension := NewExtensionData(device, physicalDevice, instance)

	require.Equal(t, &ExtensionData{
		ExternalMemoryCapabilities:    false,
		ExternalSemaphoreCapabilities: false,
		ExternalMemory:                false,
		ExternalSemaphore:             false,
		DedicatedAllocations:          false,
	}, extension)

	require.Error(t, extension.CheckInteropSupport())
}

func TestExtensionsNew_Core1_1(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	instance, physicalDevice, device := mocks.MockRig1_1(ctrl, common.Vulkan1_1, []string{}, []string{})

	extension := NewExtensionData(device, physicalDevice, instance)

	require.Equal(t, &ExtensionData{
		ExternalMemoryCapabilities:    true,
		ExternalSemaphoreCapabilities: true,
		ExternalMemory:                true,
		ExternalSemaphore:             true,
		DedicatedAllocations:          true,
	}, extension)

	require.NoError(t, extension.CheckInteropSupport())
}

func TestExtensionsNew_Extensions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	instance, physicalDevice, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0,
		[]string{
			khr_external_memory_capabilities.ExtensionName,
			khr_external_semaphore_capabilities.ExtensionName,
		},
		[]string{
			khr_external_memory.ExtensionName,
			khr_external_semaphore.ExtensionName,
		})

	extension := NewExtensionData(device, physicalDevice, instance)

	require.Equal(t, &ExtensionData{
		ExternalMemoryCapabilities:    true,
		ExternalSemaphoreCapabilities: true,
		ExternalMemory:                true,
		ExternalSemaphore:             true,
		DedicatedAllocations:          false,
	}, extension)

	require.NoError(t, extension.CheckInteropSupport())
}

func TestExtensionsNew_DedicatedAllocations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	instance, physicalDevice, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{},
		[]string{
			khr_get_memory_requirements2.ExtensionName,
			khr_dedicated_allocation.ExtensionName,
		})

	extension := NewExtensionData(device, physicalDevice, instance)

	require.True(t, extension.DedicatedAllocations)
	require.False(t, extension.ExternalMemory)
}

func TestExtensionsNew_NoDedicatedAllocations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	instance, physicalDevice, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0, []string{},
		[]string{
			khr_dedicated_allocation.ExtensionName,
		})

	extension := NewExtensionData(device, physicalDevice, instance)

	require.False(t, extension.DedicatedAllocations)
}

func TestCheckInteropSupport_MissingSemaphoreExtension(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	instance, physicalDevice, device := mocks.MockRig1_0(ctrl, common.Vulkan1_0,
		[]string{
			khr_external_memory_capabilities.ExtensionName,
			khr_external_semaphore_capabilities.ExtensionName,
		},
		[]string{
			khr_external_memory.ExtensionName,
		})

	extension := NewExtensionData(device, physicalDevice, instance)

	err := extension.CheckInteropSupport()
	require.Error(t, err)
	require.ErrorContains(t, err, khr_external_semaphore.ExtensionName)
}
