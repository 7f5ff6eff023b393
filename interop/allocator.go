package interop

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext"
	"github.com/gpuinterop/glvk/interop/internal/utils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional fields affecting the behavior of a
// created Allocator
type CreateOptions struct {
	// UseMutex indicates whether the Allocator and its memory-object
	// cache should lock around internal state. It can be left false when
	// all sharing traffic comes from a single goroutine.
	UseMutex bool

	// AllocationCallbacks is an optional set of allocation callbacks
	// passed to every Vulkan allocate and free made through this
	// Allocator
	AllocationCallbacks *driver.AllocationCallbacks

	// Exporter overrides the platform handle exporter. Leave nil to use
	// the fd or win32 exporter matching the build platform.
	Exporter HandleExporter
}

// Allocator creates device-memory allocations that can be shared with
// OpenGL. Every allocation is dedicated to a single resource and carries
// export info in its pNext chain, so a shareable handle can be retrieved
// for it after creation.
type Allocator struct {
	logger *slog.Logger

	instance       core1_0.Instance
	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device
	gl             glext.API

	extensionData *ExtensionData
	exporter      HandleExporter
	cache         *MemoryObjectCache

	deviceProperties *core1_0.PhysicalDeviceProperties
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties

	useMutex            bool
	allocationCallbacks *driver.AllocationCallbacks

	allocationCount int32
	allocationBytes int64
}

// New creates an Allocator for the provided device and GL backend. It
// probes interop capabilities up front and fails when the device cannot
// share memory or semaphores with another API.
func New(
	logger *slog.Logger,
	instance core1_0.Instance,
	physicalDevice core1_0.PhysicalDevice,
	device core1_0.Device,
	gl glext.API,
	options CreateOptions,
) (*Allocator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if instance == nil {
		return nil, errors.New("attempted to create an Allocator with a nil instance")
	}
	if physicalDevice == nil {
		return nil, errors.New("attempted to create an Allocator with a nil physical device")
	}
	if device == nil {
		return nil, errors.New("attempted to create an Allocator with a nil device")
	}
	if gl == nil {
		return nil, errors.New("attempted to create an Allocator with a nil GL backend")
	}

	extensionData := NewExtensionData(device, physicalDevice, instance)
	err := extensionData.CheckInteropSupport()
	if err != nil {
		return nil, err
	}

	exporter := options.Exporter
	if exporter == nil {
		exporter, err = NewHandleExporter(device)
		if err != nil {
			return nil, err
		}
	}

	deviceProperties, err := physicalDevice.Properties()
	if err != nil {
		return nil, err
	}

	return &Allocator{
		logger: logger,

		instance:       instance,
		physicalDevice: physicalDevice,
		device:         device,
		gl:             gl,

		extensionData: extensionData,
		exporter:      exporter,
		cache:         newMemoryObjectCache(logger, gl, exporter, options.UseMutex),

		deviceProperties: deviceProperties,
		memoryProperties: physicalDevice.MemoryProperties(),

		useMutex:            options.UseMutex,
		allocationCallbacks: options.AllocationCallbacks,
	}, nil
}

func (a *Allocator) Device() core1_0.Device {
	return a.device
}

func (a *Allocator) GL() glext.API {
	return a.gl
}

func (a *Allocator) ExtensionData() *ExtensionData {
	return a.extensionData
}

func (a *Allocator) Exporter() HandleExporter {
	return a.exporter
}

// MemoryObjects returns the cache of imported GL memory objects owned
// by this Allocator.
func (a *Allocator) MemoryObjects() *MemoryObjectCache {
	return a.cache
}

// FindMemoryTypeIndex locates a memory type permitted by memoryTypeBits
// that carries all the required property flags.
func (a *Allocator) FindMemoryTypeIndex(memoryTypeBits uint32, requiredFlags core1_0.MemoryPropertyFlags) (int, common.VkResult, error) {
	for memTypeIndex := 0; memTypeIndex < len(a.memoryProperties.MemoryTypes); memTypeIndex++ {
		memTypeBit := uint32(1) << memTypeIndex

		if memTypeBit&memoryTypeBits == 0 {
			// This memory type is banned by the bitmask
			continue
		}

		flags := a.memoryProperties.MemoryTypes[memTypeIndex].PropertyFlags
		if requiredFlags & ^flags != 0 {
			// This memory type is missing required flags
			continue
		}

		return memTypeIndex, core1_0.VKSuccess, nil
	}

	return -1, core1_0.VKErrorFeatureNotPresent, core1_0.VKErrorFeatureNotPresent.ToError()
}

// AllocateExportable makes a dedicated exportable allocation satisfying
// memoryRequirements. Exactly one of dedicatedBuffer and dedicatedImage
// should be provided, and the caller is expected to bind it at offset 0.
func (a *Allocator) AllocateExportable(
	memoryRequirements core1_0.MemoryRequirements,
	requiredFlags core1_0.MemoryPropertyFlags,
	dedicatedBuffer core1_0.Buffer,
	dedicatedImage core1_0.Image,
) (alloc *ExportableAllocation, res common.VkResult, err error) {
	if dedicatedBuffer != nil && dedicatedImage != nil {
		return nil, core1_0.VKErrorUnknown, errors.New("both buffer and image were passed in- only one is permitted")
	}

	memoryTypeIndex, res, err := a.FindMemoryTypeIndex(memoryRequirements.MemoryTypeBits, requiredFlags)
	if err != nil {
		return nil, res, err
	}

	allocInfo := core1_0.MemoryAllocateInfo{
		MemoryTypeIndex: memoryTypeIndex,
		AllocationSize:  memoryRequirements.Size,
	}

	if a.extensionData.DedicatedAllocations {
		dedicatedAllocInfo := khr_dedicated_allocation.MemoryDedicatedAllocateInfo{}
		if dedicatedBuffer != nil {
			dedicatedAllocInfo.Buffer = dedicatedBuffer
			dedicatedAllocInfo.Next = allocInfo.Next
			allocInfo.Next = dedicatedAllocInfo
		} else if dedicatedImage != nil {
			dedicatedAllocInfo.Image = dedicatedImage
			dedicatedAllocInfo.Next = allocInfo.Next
			allocInfo.Next = dedicatedAllocInfo
		}
	}

	// Export info is unconditional- an allocation without it can never
	// produce a shareable handle, and CheckInteropSupport has already
	// verified that the handle type is available
	exportMemoryAllocInfo := khr_external_memory.ExportMemoryAllocateInfo{
		HandleTypes: memoryHandleType,
	}
	exportMemoryAllocInfo.Next = allocInfo.Next
	allocInfo.Next = exportMemoryAllocInfo

	newCount := atomic.AddInt32(&a.allocationCount, 1)
	defer func() {
		// If we failed out, roll back the count increment
		if err != nil {
			atomic.AddInt32(&a.allocationCount, -1)
		}
	}()

	if int(newCount) > a.deviceProperties.Limits.MaxMemoryAllocationCount {
		return nil, core1_0.VKErrorTooManyObjects, core1_0.VKErrorTooManyObjects.ToError()
	}

	memory, res, err := a.device.AllocateMemory(a.allocationCallbacks, allocInfo)
	if err != nil {
		return nil, res, err
	}

	atomic.AddInt64(&a.allocationBytes, int64(memoryRequirements.Size))

	memTypeFlags := a.memoryProperties.MemoryTypes[memoryTypeIndex].PropertyFlags
	return &ExportableAllocation{
		mapMutex: utils.OptionalMutex{UseMutex: a.useMutex},
		memory:   memory,

		size:            memoryRequirements.Size,
		memoryTypeIndex: memoryTypeIndex,
		hostCoherent:    memTypeFlags&core1_0.MemoryPropertyHostCoherent != 0,

		allocationCallbacks: a.allocationCallbacks,
	}, res, nil
}

// FreeAllocation returns an allocation's device memory to the driver.
// The caller must have released any imported memory object for it first.
func (a *Allocator) FreeAllocation(alloc *ExportableAllocation) {
	if alloc == nil {
		return
	}

	alloc.free()
	atomic.AddInt32(&a.allocationCount, -1)
	atomic.AddInt64(&a.allocationBytes, -int64(alloc.size))
}

// Destroy tears down the Allocator, force-destroying any imported memory
// objects that are still live. Allocations that have not been freed are
// logged.
func (a *Allocator) Destroy() {
	count := atomic.LoadInt32(&a.allocationCount)
	if count > 0 {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] destroying an allocator with live allocations",
			slog.Int("allocation.count", int(count)),
			slog.Int64("allocation.bytes", atomic.LoadInt64(&a.allocationBytes)),
		)
	}

	a.cache.Clear()
}

// PrintStats writes a summary of the Allocator's live state to the
// provided json object.
func (a *Allocator) PrintStats(json *jwriter.ObjectState) {
	json.Name("AllocationCount").Int(int(atomic.LoadInt32(&a.allocationCount)))
	json.Name("AllocationBytes").Int(int(atomic.LoadInt64(&a.allocationBytes)))
	json.Name("ImportedMemoryObjects").Int(a.cache.Count())
}

// WriteStats writes a json description of the Allocator's live state
// to the provided writer.
func (a *Allocator) WriteStats(writer *jwriter.Writer) {
	obj := writer.Object()
	a.PrintStats(&obj)
	obj.End()
}

// BuildStatsString returns a json description of the Allocator's live
// state.
func (a *Allocator) BuildStatsString() string {
	writer := jwriter.NewWriter()
	a.WriteStats(&writer)
	return string(writer.Bytes())
}
