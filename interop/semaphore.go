package interop

import (
	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore"
)

// SemaphorePair is the pair of cross-API semaphores coordinating a
// producer/consumer loop between Vulkan and GL. Ready is signaled on the
// GL side when the consumer has finished reading shared images, and
// waited on the Vulkan side before the producer writes them. Complete
// runs the other way.
//
// Both semaphores are created in Vulkan with export info and imported
// into GL, and all waits and signals are queued GPU work on one side or
// the other. Nothing here ever blocks the host.
type SemaphorePair struct {
	allocator *Allocator

	ready    core1_0.Semaphore
	complete core1_0.Semaphore

	glReady    glext.Semaphore
	glComplete glext.Semaphore

	destroyed bool
}

func (a *Allocator) createExportedSemaphore() (core1_0.Semaphore, glext.Semaphore, common.VkResult, error) {
	semaphoreInfo := core1_0.SemaphoreCreateInfo{}
	exportInfo := khr_external_semaphore.ExportSemaphoreCreateInfo{
		HandleTypes: semaphoreHandleType,
	}
	semaphoreInfo.Next = exportInfo

	semaphore, res, err := a.device.CreateSemaphore(a.allocationCallbacks, semaphoreInfo)
	if err != nil {
		return nil, 0, res, err
	}

	handle, err := a.exporter.ExportSemaphoreHandle(semaphore)
	if err != nil {
		semaphore.Destroy(a.allocationCallbacks)
		return nil, 0, core1_0.VKErrorUnknown, errors.Wrap(err, "failed to export a shareable handle for a semaphore")
	}

	glSemaphore, err := a.gl.GenSemaphore()
	if err != nil {
		_ = handle.Release()
		semaphore.Destroy(a.allocationCallbacks)
		return nil, 0, core1_0.VKErrorUnknown, err
	}

	raw, err := handle.Take()
	if err == nil {
		err = a.gl.ImportSemaphore(glSemaphore, raw)
		if err != nil {
			// The failed import did not consume the raw value. Put it
			// back so Release closes the OS resource.
			_ = handle.Reclaim()
		}
	}
	if err != nil {
		a.gl.DeleteSemaphore(glSemaphore)
		_ = handle.Release()
		semaphore.Destroy(a.allocationCallbacks)
		return nil, 0, core1_0.VKErrorUnknown, err
	}

	// On handle types that are consumed by the import, this is a no-op
	_ = handle.Release()

	return semaphore, glSemaphore, res, nil
}

// CreateSemaphorePair creates the two cross-API semaphores used to
// coordinate one producer/consumer loop. Neither semaphore is signaled
// at creation; on the first frame the consumer signals Ready before the
// producer's first wait is submitted.
func (a *Allocator) CreateSemaphorePair() (*SemaphorePair, common.VkResult, error) {
	ready, glReady, res, err := a.createExportedSemaphore()
	if err != nil {
		return nil, res, err
	}

	complete, glComplete, res, err := a.createExportedSemaphore()
	if err != nil {
		a.gl.DeleteSemaphore(glReady)
		ready.Destroy(a.allocationCallbacks)
		return nil, res, err
	}

	return &SemaphorePair{
		allocator: a,

		ready:    ready,
		complete: complete,

		glReady:    glReady,
		glComplete: glComplete,
	}, res, nil
}

// VulkanReady returns the semaphore the producer's submission should
// wait on before writing shared images.
func (p *SemaphorePair) VulkanReady() core1_0.Semaphore {
	return p.ready
}

// VulkanComplete returns the semaphore the producer's submission should
// signal after writing shared images.
func (p *SemaphorePair) VulkanComplete() core1_0.Semaphore {
	return p.complete
}

// SignalReady queues a GL-side signal of the ready semaphore, handing
// the textures to Vulkan in the provided layouts.
func (p *SemaphorePair) SignalReady(textures []glext.Texture, layouts []glext.Layout) error {
	return p.allocator.gl.SignalSemaphore(p.glReady, textures, layouts)
}

// WaitComplete queues a GL-side wait for the complete semaphore,
// receiving the textures back from Vulkan in the provided layouts. The
// wait holds up queued GL work, not the host.
func (p *SemaphorePair) WaitComplete(textures []glext.Texture, layouts []glext.Layout) error {
	return p.allocator.gl.WaitSemaphore(p.glComplete, textures, layouts)
}

// Destroy tears down both semaphores on both sides. It does not wait for
// pending GPU work; the caller must idle the queues first.
func (p *SemaphorePair) Destroy() error {
	if p.destroyed {
		err := errors.New("attempted to destroy a semaphore pair that was already destroyed")
		debugFail(err)
		return err
	}
	p.destroyed = true

	a := p.allocator
	a.gl.DeleteSemaphore(p.glReady)
	a.gl.DeleteSemaphore(p.glComplete)
	p.ready.Destroy(a.allocationCallbacks)
	p.complete.Destroy(a.allocationCallbacks)
	return nil
}
