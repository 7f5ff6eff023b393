package interop

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext"
	"github.com/gpuinterop/glvk/glext/glexttest"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_external_semaphore"
	"go.uber.org/mock/gomock"
)

func expectSemaphoreCreation(ctrl *gomock.Controller, device *mocks.MockDevice) (*mocks.MockSemaphore, *mocks.MockSemaphore) {
	ready := mocks.EasyMockSemaphore(ctrl)
	complete := mocks.EasyMockSemaphore(ctrl)

	exportInfo := core1_0.SemaphoreCreateInfo{
		NextOptions: common.NextOptions{
			Next: khr_external_semaphore.ExportSemaphoreCreateInfo{
				HandleTypes: semaphoreHandleType,
			},
		},
	}
	first := device.EXPECT().CreateSemaphore(gomock.Any(), exportInfo).Return(ready, core1_0.VKSuccess, nil)
	device.EXPECT().CreateSemaphore(gomock.Any(), exportInfo).Return(complete, core1_0.VKSuccess, nil).After(first)

	return ready, complete
}

func TestSemaphorePairCreatesBothSides(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	exporter := &fakeExporter{}
	allocator, device, _ := testAllocator(ctrl, gl, exporter)

	ready, complete := expectSemaphoreCreation(ctrl, device)

	pair, _, err := allocator.CreateSemaphorePair()
	require.NoError(t, err)

	require.Equal(t, ready, pair.VulkanReady())
	require.Equal(t, complete, pair.VulkanComplete())
	require.Equal(t, 2, exporter.semaphoreExports)
	require.Len(t, gl.SemaphoreImports, 2)
	require.Len(t, gl.LiveSemaphores, 2)
}

func TestSemaphorePairSignalAndWaitTraffic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	allocator, device, _ := testAllocator(ctrl, gl, &fakeExporter{})
	expectSemaphoreCreation(ctrl, device)

	pair, _, err := allocator.CreateSemaphorePair()
	require.NoError(t, err)

	textures := []glext.Texture{7}

	require.NoError(t, pair.SignalReady(textures, []glext.Layout{glext.LayoutShaderReadOnly}))
	require.NoError(t, pair.WaitComplete(textures, []glext.Layout{glext.LayoutColorAttachment}))

	require.Len(t, gl.Signals, 1)
	require.Equal(t, textures, gl.Signals[0].Textures)
	require.Equal(t, []glext.Layout{glext.LayoutShaderReadOnly}, gl.Signals[0].Layouts)

	require.Len(t, gl.Waits, 1)
	require.Equal(t, textures, gl.Waits[0].Textures)
	require.Equal(t, []glext.Layout{glext.LayoutColorAttachment}, gl.Waits[0].Layouts)

	// Signals and waits hit different semaphores, the loop never waits
	// on its own signal
	require.NotEqual(t, gl.Signals[0].Semaphore, gl.Waits[0].Semaphore)
}

func TestSemaphorePairToleratesProducerSkew(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	allocator, device, _ := testAllocator(ctrl, gl, &fakeExporter{})
	expectSemaphoreCreation(ctrl, device)

	pair, _, err := allocator.CreateSemaphorePair()
	require.NoError(t, err)

	// The consumer can run ahead of the producer by a frame without
	// anything deadlocking, the extra signal just stays pending
	require.NoError(t, pair.SignalReady(nil, nil))
	require.NoError(t, pair.SignalReady(nil, nil))
	require.NoError(t, pair.WaitComplete(nil, nil))

	require.Equal(t, 2, gl.PendingSignals(gl.Signals[0].Semaphore))
	require.Equal(t, -1, gl.PendingSignals(gl.Waits[0].Semaphore))
}

func TestSemaphorePairClosesHandleWhenImportFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	gl.ImportError = errors.New("out of import slots")
	exporter := &fakeExporter{}
	allocator, device, _ := testAllocator(ctrl, gl, exporter)

	ready := mocks.EasyMockSemaphore(ctrl)
	device.EXPECT().CreateSemaphore(gomock.Any(), gomock.Any()).Return(ready, core1_0.VKSuccess, nil)
	ready.EXPECT().Destroy(gomock.Nil())

	_, _, err := allocator.CreateSemaphorePair()
	require.Error(t, err)

	// The failed import never consumed the exported value, so it must
	// be closed, and neither side of the pair may leak.
	require.Equal(t, []uintptr{1}, exporter.closed)
	require.Empty(t, gl.LiveSemaphores)
}

func TestSemaphorePairDestroy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	allocator, device, _ := testAllocator(ctrl, gl, &fakeExporter{})
	ready, complete := expectSemaphoreCreation(ctrl, device)

	pair, _, err := allocator.CreateSemaphorePair()
	require.NoError(t, err)

	ready.EXPECT().Destroy(gomock.Nil())
	complete.EXPECT().Destroy(gomock.Nil())

	require.NoError(t, pair.Destroy())
	require.Empty(t, gl.LiveSemaphores)

	require.Error(t, pair.Destroy())
}
