package compute

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext"
	"github.com/gpuinterop/glvk/interop"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// The compute shader runs in 16x16 workgroups; dispatch sizes are
// rounded up to cover the whole image.
const workgroupSize = 16

// Stage owns the Vulkan side of the frame loop. Each frame it records a
// compute dispatch that writes the shared texture, waiting the ready
// semaphore before the dispatch and signaling the complete semaphore
// after it. The texture lives in ImageLayoutGeneral for its whole
// lifetime outside of the handoff.
type Stage struct {
	logger    *slog.Logger
	allocator *interop.Allocator
	device    core1_0.Device

	queue            core1_0.Queue
	queueFamilyIndex int

	texture    *interop.SharedTexture
	semaphores *interop.SemaphorePair

	commandPool   core1_0.CommandPool
	commandBuffer core1_0.CommandBuffer
	fence         core1_0.Fence

	descriptorSetLayout core1_0.DescriptorSetLayout
	descriptorPool      core1_0.DescriptorPool
	descriptorSet       core1_0.DescriptorSet
	pipelineLayout      core1_0.PipelineLayout
	pipeline            core1_0.Pipeline

	format core1_0.Format
}

// New creates a compute Stage producing into a fresh shared texture of
// the provided extent. shaderCode is SPIR-V for a compute shader with a
// single storage-image binding and one float push constant.
func New(
	logger *slog.Logger,
	allocator *interop.Allocator,
	queue core1_0.Queue,
	queueFamilyIndex int,
	shaderCode []byte,
	extent core1_0.Extent2D,
	format core1_0.Format,
) (*Stage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(shaderCode) == 0 {
		return nil, errors.New("attempted to create a compute stage with no shader code")
	}

	s := &Stage{
		logger:    logger,
		allocator: allocator,
		device:    allocator.Device(),

		queue:            queue,
		queueFamilyIndex: queueFamilyIndex,

		format: format,
	}

	err := s.createFixedObjects(shaderCode)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	semaphores, _, err := allocator.CreateSemaphorePair()
	if err != nil {
		s.Destroy()
		return nil, err
	}
	s.semaphores = semaphores

	err = s.createTexture(extent)
	if err != nil {
		s.Destroy()
		return nil, err
	}

	return s, nil
}

// createFixedObjects builds everything that survives a resize: the
// command pool and buffer, descriptor machinery, pipeline, and the
// frame fence.
func (s *Stage) createFixedObjects(shaderCode []byte) error {
	commandPool, _, err := s.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: s.queueFamilyIndex,
	})
	if err != nil {
		return err
	}
	s.commandPool = commandPool

	commandBuffers, _, err := s.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return err
	}
	s.commandBuffer = commandBuffers[0]

	descriptorSetLayout, _, err := s.device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeStorageImage,
				DescriptorCount: 1,
				StageFlags:      core1_0.StageCompute,
			},
		},
	})
	if err != nil {
		return err
	}
	s.descriptorSetLayout = descriptorSetLayout

	descriptorPool, _, err := s.device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: 1,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeStorageImage,
				DescriptorCount: 1,
			},
		},
	})
	if err != nil {
		return err
	}
	s.descriptorPool = descriptorPool

	descriptorSets, _, err := s.device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: descriptorPool,
		SetLayouts:     []core1_0.DescriptorSetLayout{descriptorSetLayout},
	})
	if err != nil {
		return err
	}
	s.descriptorSet = descriptorSets[0]

	pipelineLayout, _, err := s.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{descriptorSetLayout},
		PushConstantRanges: []core1_0.PushConstantRange{
			{
				StageFlags: core1_0.StageCompute,
				Offset:     0,
				Size:       4,
			},
		},
	})
	if err != nil {
		return err
	}
	s.pipelineLayout = pipelineLayout

	shaderWords := make([]uint32, len(shaderCode)/4)
	for i := range shaderWords {
		shaderWords[i] = binary.LittleEndian.Uint32(shaderCode[i*4:])
	}
	shaderModule, _, err := s.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: shaderWords,
	})
	if err != nil {
		return err
	}
	defer shaderModule.Destroy(nil)

	pipelines, _, err := s.device.CreateComputePipelines(nil, nil, []core1_0.ComputePipelineCreateInfo{
		{
			Stage: core1_0.PipelineShaderStageCreateInfo{
				Stage:  core1_0.StageCompute,
				Module: shaderModule,
				Name:   "main",
			},
			Layout: pipelineLayout,
		},
	})
	if err != nil {
		return err
	}
	s.pipeline = pipelines[0]

	// Created signaled so the first frame's wait passes without a
	// pending submission
	fence, _, err := s.device.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	})
	if err != nil {
		return err
	}
	s.fence = fence

	return nil
}

// createTexture builds the shared texture, moves it into
// ImageLayoutGeneral, and points the descriptor set at it.
func (s *Stage) createTexture(extent core1_0.Extent2D) error {
	texture, _, err := s.allocator.CreateSharedTexture(extent, s.format, core1_0.ImageUsageSampled|core1_0.ImageUsageStorage)
	if err != nil {
		return err
	}

	err = s.transitionToGeneral(texture)
	if err != nil {
		destroyErr := texture.Destroy()
		if destroyErr != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to destroy a shared texture after a failed layout transition",
				slog.Any("error", destroyErr),
			)
		}
		return err
	}
	s.texture = texture

	err = s.device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:         s.descriptorSet,
			DstBinding:     0,
			DescriptorType: core1_0.DescriptorTypeStorageImage,
			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   texture.View(),
					ImageLayout: core1_0.ImageLayoutGeneral,
				},
			},
		},
	}, nil)
	return err
}

// transitionToGeneral submits a one-shot barrier moving a fresh image
// from ImageLayoutUndefined to ImageLayoutGeneral and waits for it.
func (s *Stage) transitionToGeneral(texture *interop.SharedTexture) error {
	commandBuffers, _, err := s.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        s.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return err
	}
	commandBuffer := commandBuffers[0]
	defer s.device.FreeCommandBuffers(commandBuffers)

	_, err = commandBuffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return err
	}

	err = commandBuffer.CmdPipelineBarrier(
		core1_0.PipelineStageTopOfPipe,
		core1_0.PipelineStageComputeShader,
		0,
		nil,
		nil,
		[]core1_0.ImageMemoryBarrier{
			{
				SrcAccessMask:       0,
				DstAccessMask:       core1_0.AccessShaderWrite,
				OldLayout:           core1_0.ImageLayoutUndefined,
				NewLayout:           core1_0.ImageLayoutGeneral,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               texture.VulkanImage(),
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask: core1_0.ImageAspectColor,
					LevelCount: 1,
					LayerCount: 1,
				},
			},
		},
	)
	if err != nil {
		return err
	}

	_, err = commandBuffer.End()
	if err != nil {
		return err
	}

	fence, _, err := s.device.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return err
	}
	defer fence.Destroy(nil)

	_, err = s.queue.Submit(fence, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{commandBuffer},
		},
	})
	if err != nil {
		return err
	}

	_, err = fence.Wait(common.NoTimeout)
	return err
}

// Texture returns the shared texture the stage currently produces into.
// The returned value changes across Resize calls.
func (s *Stage) Texture() *interop.SharedTexture {
	return s.texture
}

// Semaphores returns the cross-API pair coordinating the stage with its
// consumer.
func (s *Stage) Semaphores() *interop.SemaphorePair {
	return s.semaphores
}

// GLHandles returns the GL texture list and layout lists used when
// signaling and waiting the pair for this stage's texture.
func (s *Stage) GLHandles() []glext.Texture {
	return []glext.Texture{s.texture.GLTexture()}
}

// Resize replaces the shared texture with one of the new extent. The
// device is idled first, so no submitted work can still reference the
// old image on either API. No-extent-change calls are ignored.
func (s *Stage) Resize(extent core1_0.Extent2D) error {
	if s.texture != nil && s.texture.Extent() == extent {
		return nil
	}

	_, err := s.device.WaitIdle()
	if err != nil {
		return err
	}

	if s.texture != nil {
		old := s.texture
		s.texture = nil
		err = old.Destroy()
		if err != nil {
			return err
		}
	}

	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "resizing shared texture",
		slog.Int("width", extent.Width),
		slog.Int("height", extent.Height),
	)

	return s.createTexture(extent)
}

func dispatchCount(size int) int {
	return (size + workgroupSize - 1) / workgroupSize
}

// Submit records and submits one frame of compute work. elapsedSeconds
// feeds the shader's push constant. The submission waits on the ready
// semaphore at the compute stage and signals the complete semaphore, so
// it interlocks with the consumer's queued GL work without blocking the
// host. The only host wait is on the previous frame's fence, which
// guards re-recording the command buffer.
func (s *Stage) Submit(elapsedSeconds float32) error {
	_, err := s.fence.Wait(common.NoTimeout)
	if err != nil {
		return err
	}
	_, err = s.fence.Reset()
	if err != nil {
		return err
	}

	_, err = s.commandBuffer.Begin(core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return err
	}

	s.commandBuffer.CmdBindPipeline(core1_0.PipelineBindPointCompute, s.pipeline)
	s.commandBuffer.CmdBindDescriptorSets(core1_0.PipelineBindPointCompute, s.pipelineLayout, 0, []core1_0.DescriptorSet{s.descriptorSet}, nil)

	pushData := make([]byte, 4)
	binary.LittleEndian.PutUint32(pushData, math.Float32bits(elapsedSeconds))
	s.commandBuffer.CmdPushConstants(s.pipelineLayout, core1_0.StageCompute, 0, pushData)

	extent := s.texture.Extent()
	s.commandBuffer.CmdDispatch(dispatchCount(extent.Width), dispatchCount(extent.Height), 1)

	_, err = s.commandBuffer.End()
	if err != nil {
		return err
	}

	_, err = s.queue.Submit(s.fence, []core1_0.SubmitInfo{
		{
			CommandBuffers:   []core1_0.CommandBuffer{s.commandBuffer},
			WaitSemaphores:   []core1_0.Semaphore{s.semaphores.VulkanReady()},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageComputeShader},
			SignalSemaphores: []core1_0.Semaphore{s.semaphores.VulkanComplete()},
		},
	})
	return err
}

// Destroy tears down the stage. The device is idled first so no
// submitted work can still reference the stage's objects. Destroy is
// safe to call on a partially-constructed stage.
func (s *Stage) Destroy() {
	_, err := s.device.WaitIdle()
	if err != nil {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to idle the device during compute stage teardown",
			slog.Any("error", err),
		)
	}

	if s.texture != nil {
		err = s.texture.Destroy()
		if err != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to destroy the shared texture",
				slog.Any("error", err),
			)
		}
		s.texture = nil
	}
	if s.semaphores != nil {
		_ = s.semaphores.Destroy()
		s.semaphores = nil
	}
	if s.fence != nil {
		s.fence.Destroy(nil)
		s.fence = nil
	}
	if s.pipeline != nil {
		s.pipeline.Destroy(nil)
		s.pipeline = nil
	}
	if s.pipelineLayout != nil {
		s.pipelineLayout.Destroy(nil)
		s.pipelineLayout = nil
	}
	if s.descriptorPool != nil {
		s.descriptorPool.Destroy(nil)
		s.descriptorPool = nil
	}
	if s.descriptorSetLayout != nil {
		s.descriptorSetLayout.Destroy(nil)
		s.descriptorSetLayout = nil
	}
	if s.commandPool != nil {
		s.commandPool.Destroy(nil)
		s.commandPool = nil
	}
}
