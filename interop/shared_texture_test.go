package interop

import (
	"testing"

	"github.com/gpuinterop/glvk/glext"
	"github.com/gpuinterop/glvk/glext/glexttest"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"go.uber.org/mock/gomock"
)

func expectTextureCreation(ctrl *gomock.Controller, device *mocks.MockDevice, extent core1_0.Extent2D, usage core1_0.ImageUsageFlags, allocationSize int) (*mocks.MockImage, *mocks.MockImageView, *mocks.MockDeviceMemory) {
	image := mocks.EasyMockImage(ctrl)
	device.EXPECT().CreateImage(gomock.Any(), core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Format:    core1_0.FormatR8G8B8A8UnsignedNormalized,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       core1_0.Samples1,
		Tiling:        core1_0.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
		NextOptions: common.NextOptions{
			Next: khr_external_memory.ExternalMemoryImageCreateInfo{
				HandleTypes: memoryHandleType,
			},
		},
	}).Return(image, core1_0.VKSuccess, nil)

	image.EXPECT().MemoryRequirements().Return(&core1_0.MemoryRequirements{
		Size:           allocationSize,
		Alignment:      256,
		MemoryTypeBits: 0xffffffff,
	})

	memory := mocks.EasyMockDeviceMemory(ctrl)
	device.EXPECT().AllocateMemory(gomock.Any(), core1_0.MemoryAllocateInfo{
		MemoryTypeIndex: 0,
		AllocationSize:  allocationSize,
		NextOptions: common.NextOptions{
			Next: khr_external_memory.ExportMemoryAllocateInfo{
				HandleTypes: memoryHandleType,
				NextOptions: common.NextOptions{
					Next: khr_dedicated_allocation.MemoryDedicatedAllocateInfo{
						Image: image,
					},
				},
			},
		},
	}).Return(memory, core1_0.VKSuccess, nil)

	image.EXPECT().BindImageMemory(memory, 0).Return(core1_0.VKSuccess, nil)

	view := mocks.EasyMockImageView(ctrl)
	device.EXPECT().CreateImageView(gomock.Any(), core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.FormatR8G8B8A8UnsignedNormalized,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask: core1_0.ImageAspectColor,
			LevelCount: 1,
			LayerCount: 1,
		},
	}).Return(view, core1_0.VKSuccess, nil)

	return image, view, memory
}

func TestSharedTextureLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	exporter := &fakeExporter{}
	allocator, device, physicalDevice := testAllocator(ctrl, gl, exporter)

	physicalDevice.EXPECT().FormatProperties(core1_0.FormatR8G8B8A8UnsignedNormalized).Return(&core1_0.FormatProperties{
		OptimalTilingFeatures: core1_0.FormatFeatureStorageImage | core1_0.FormatFeatureSampledImage,
	}).AnyTimes()

	extent := core1_0.Extent2D{Width: 1024, Height: 1024}
	usage := core1_0.ImageUsageSampled | core1_0.ImageUsageStorage
	const allocationSize = 1024 * 1024 * 4

	image, view, memory := expectTextureCreation(ctrl, device, extent, usage, allocationSize)

	texture, _, err := allocator.CreateSharedTexture(extent, core1_0.FormatR8G8B8A8UnsignedNormalized, usage)
	require.NoError(t, err)

	require.Equal(t, image, texture.VulkanImage())
	require.Equal(t, view, texture.View())
	require.Equal(t, extent, texture.Extent())
	require.Equal(t, core1_0.FormatR8G8B8A8UnsignedNormalized, texture.Format())

	require.Equal(t, 1, exporter.memoryExports)
	require.Len(t, gl.MemoryImports, 1)
	require.Equal(t, allocationSize, gl.MemoryImports[0].Size)

	require.Len(t, gl.TextureBindings, 1)
	binding := gl.TextureBindings[0]
	require.Equal(t, texture.GLTexture(), binding.Texture)
	require.Equal(t, glext.InternalFormatRGBA8, binding.InternalFormat)
	require.Equal(t, 1024, binding.Width)
	require.Equal(t, 1024, binding.Height)

	view.EXPECT().Destroy(gomock.Nil())
	image.EXPECT().Destroy(gomock.Nil())
	memory.EXPECT().Free(gomock.Nil())

	require.NoError(t, texture.Destroy())
	require.Len(t, gl.DeletedMemoryObjects, 1)
	require.Empty(t, gl.LiveTextures)
	require.Equal(t, 0, allocator.MemoryObjects().Count())
}

func TestSharedTexturesUseDistinctImports(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	exporter := &fakeExporter{}
	allocator, device, _ := testAllocator(ctrl, gl, exporter)

	extent := core1_0.Extent2D{Width: 64, Height: 64}
	expectTextureCreation(ctrl, device, extent, core1_0.ImageUsageSampled, 16384)
	expectTextureCreation(ctrl, device, extent, core1_0.ImageUsageSampled, 16384)

	first, _, err := allocator.CreateSharedTexture(extent, core1_0.FormatR8G8B8A8UnsignedNormalized, core1_0.ImageUsageSampled)
	require.NoError(t, err)
	second, _, err := allocator.CreateSharedTexture(extent, core1_0.FormatR8G8B8A8UnsignedNormalized, core1_0.ImageUsageSampled)
	require.NoError(t, err)

	require.NotEqual(t, first.GLTexture(), second.GLTexture())
	require.Equal(t, 2, exporter.memoryExports)
	require.Equal(t, 2, allocator.MemoryObjects().Count())
}

func TestSharedTextureInvalidExtent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	allocator, _, _ := testAllocator(ctrl, glexttest.NewFakeAPI(), &fakeExporter{})

	_, _, err := allocator.CreateSharedTexture(core1_0.Extent2D{Width: 0, Height: 64}, core1_0.FormatR8G8B8A8UnsignedNormalized, core1_0.ImageUsageSampled)
	require.Error(t, err)
}

func TestSharedTextureUnmappedFormat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	allocator, _, _ := testAllocator(ctrl, glexttest.NewFakeAPI(), &fakeExporter{})

	_, res, err := allocator.CreateSharedTexture(core1_0.Extent2D{Width: 64, Height: 64}, core1_0.FormatR16G16B16A16SignedFloat, core1_0.ImageUsageSampled)
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorFormatNotSupported, res)
}

func TestSharedTextureMissingStorageSupport(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	allocator, _, physicalDevice := testAllocator(ctrl, glexttest.NewFakeAPI(), &fakeExporter{})

	physicalDevice.EXPECT().FormatProperties(core1_0.FormatR8G8B8A8UnsignedNormalized).Return(&core1_0.FormatProperties{
		OptimalTilingFeatures: core1_0.FormatFeatureSampledImage,
	})

	_, res, err := allocator.CreateSharedTexture(core1_0.Extent2D{Width: 64, Height: 64}, core1_0.FormatR8G8B8A8UnsignedNormalized, core1_0.ImageUsageStorage)
	require.Error(t, err)
	require.Equal(t, core1_0.VKErrorFormatNotSupported, res)
}
