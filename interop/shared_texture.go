package interop

import (
	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
)

// SharedTexture is a single 2d image visible through two views, a Vulkan
// image and a GL texture. The memory is always device-local and the
// image always uses optimal tiling, so all access goes through the two
// APIs rather than the host.
type SharedTexture struct {
	allocator *Allocator

	image      core1_0.Image
	view       core1_0.ImageView
	allocation *ExportableAllocation
	glTexture  glext.Texture

	extent core1_0.Extent2D
	format core1_0.Format

	destroyed bool
}

func glInternalFormat(format core1_0.Format) (uint32, error) {
	switch format {
	case core1_0.FormatR8G8B8A8UnsignedNormalized:
		return glext.InternalFormatRGBA8, nil
	}
	return 0, errors.Newf("no GL internal format is mapped for %s", format)
}

// CreateSharedTexture creates an image of the requested extent and
// format, backs it with a dedicated exportable allocation, and imports
// that allocation as a GL texture. The image is left in
// ImageLayoutUndefined; the caller is responsible for transitioning it
// before use.
func (a *Allocator) CreateSharedTexture(extent core1_0.Extent2D, format core1_0.Format, usage core1_0.ImageUsageFlags) (*SharedTexture, common.VkResult, error) {
	if extent.Width < 1 || extent.Height < 1 {
		return nil, core1_0.VKErrorUnknown, errors.Newf("attempted to create a shared texture with invalid extent %dx%d", extent.Width, extent.Height)
	}

	internalFormat, err := glInternalFormat(format)
	if err != nil {
		return nil, core1_0.VKErrorFormatNotSupported, err
	}

	if usage&core1_0.ImageUsageStorage != 0 {
		formatProperties := a.physicalDevice.FormatProperties(format)
		if formatProperties.OptimalTilingFeatures&core1_0.FormatFeatureStorageImage == 0 {
			return nil, core1_0.VKErrorFormatNotSupported, errors.Newf("format %s does not support storage image access on this device", format)
		}
	}

	imageInfo := core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Format:    format,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     core1_0.Samples1,
		Tiling:      core1_0.ImageTilingOptimal,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,

		InitialLayout: core1_0.ImageLayoutUndefined,
	}

	// The handle type has to be declared at image creation as well as at
	// allocation
	externalInfo := khr_external_memory.ExternalMemoryImageCreateInfo{
		HandleTypes: memoryHandleType,
	}
	imageInfo.Next = externalInfo

	image, res, err := a.device.CreateImage(a.allocationCallbacks, imageInfo)
	if err != nil {
		return nil, res, err
	}

	allocation, res, err := a.AllocateExportable(*image.MemoryRequirements(), core1_0.MemoryPropertyDeviceLocal, nil, image)
	if err != nil {
		image.Destroy(a.allocationCallbacks)
		return nil, res, err
	}

	res, err = image.BindImageMemory(allocation.Memory(), 0)
	if err != nil {
		a.FreeAllocation(allocation)
		image.Destroy(a.allocationCallbacks)
		return nil, res, err
	}

	view, res, err := a.device.CreateImageView(a.allocationCallbacks, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask: core1_0.ImageAspectColor,
			LevelCount: 1,
			LayerCount: 1,
		},
	})
	if err != nil {
		a.FreeAllocation(allocation)
		image.Destroy(a.allocationCallbacks)
		return nil, res, err
	}

	memoryObject, err := a.cache.Acquire(allocation.Memory(), allocation.Size())
	if err != nil {
		view.Destroy(a.allocationCallbacks)
		a.FreeAllocation(allocation)
		image.Destroy(a.allocationCallbacks)
		return nil, core1_0.VKErrorUnknown, err
	}

	glTexture, err := a.gl.CreateTexture2D()
	if err == nil {
		err = a.gl.TextureStorage2D(glTexture, 1, internalFormat, extent.Width, extent.Height, memoryObject, 0)
	}
	if err != nil {
		if glTexture != 0 {
			a.gl.DeleteTexture(glTexture)
		}
		releaseErr := a.cache.ReleaseMemoryObject(allocation.Memory())
		if releaseErr != nil {
			debugFail(releaseErr)
		}
		view.Destroy(a.allocationCallbacks)
		a.FreeAllocation(allocation)
		image.Destroy(a.allocationCallbacks)
		return nil, core1_0.VKErrorUnknown, err
	}

	a.gl.SetTextureParameters(glTexture, glext.FilterLinear, glext.FilterLinear, glext.WrapRepeat)

	return &SharedTexture{
		allocator: a,

		image:      image,
		view:       view,
		allocation: allocation,
		glTexture:  glTexture,

		extent: extent,
		format: format,
	}, res, nil
}

// VulkanImage returns the Vulkan view of the shared image.
func (t *SharedTexture) VulkanImage() core1_0.Image {
	return t.image
}

// View returns an image view covering the whole image.
func (t *SharedTexture) View() core1_0.ImageView {
	return t.view
}

// GLTexture returns the GL view of the shared image.
func (t *SharedTexture) GLTexture() glext.Texture {
	return t.glTexture
}

// Allocation returns the exportable allocation backing both views.
func (t *SharedTexture) Allocation() *ExportableAllocation {
	return t.allocation
}

func (t *SharedTexture) Extent() core1_0.Extent2D {
	return t.extent
}

func (t *SharedTexture) Format() core1_0.Format {
	return t.format
}

// Destroy tears down both views and frees the backing allocation. The
// caller must ensure no work referencing the texture is still in flight
// on either API. Destroying a SharedTexture twice is a usage error.
func (t *SharedTexture) Destroy() error {
	if t.destroyed {
		err := errors.New("attempted to destroy a shared texture that was already destroyed")
		debugFail(err)
		return err
	}
	t.destroyed = true

	a := t.allocator
	a.gl.DeleteTexture(t.glTexture)
	err := a.cache.ReleaseMemoryObject(t.allocation.Memory())
	t.view.Destroy(a.allocationCallbacks)
	t.image.Destroy(a.allocationCallbacks)
	a.FreeAllocation(t.allocation)
	return err
}
