package interop

import (
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext/glexttest"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/mocks"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

// fakeExporter hands out handles without touching a driver, counting
// exports and recording closed raw values so tests can verify caching
// and ownership behavior.
type fakeExporter struct {
	memoryExports    int
	semaphoreExports int
	nextRaw          uintptr
	retainAfterTake  bool

	closed []uintptr
}

func (f *fakeExporter) closeRaw(raw uintptr) error {
	f.closed = append(f.closed, raw)
	return nil
}

func (f *fakeExporter) ExportMemoryHandle(memory core1_0.DeviceMemory) (*Handle, error) {
	f.memoryExports++
	f.nextRaw++
	return NewHandle(f.nextRaw, f.retainAfterTake, f.closeRaw), nil
}

func (f *fakeExporter) ExportSemaphoreHandle(semaphore core1_0.Semaphore) (*Handle, error) {
	f.semaphoreExports++
	f.nextRaw++
	return NewHandle(f.nextRaw, f.retainAfterTake, f.closeRaw), nil
}

func testCache(gl *glexttest.FakeAPI, exporter HandleExporter) *MemoryObjectCache {
	logger := slog.New(slog.NewTextHandler(os.Stdout))
	return newMemoryObjectCache(logger, gl, exporter, false)
}

func TestCacheImportsEachMemoryOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	exporter := &fakeExporter{}
	cache := testCache(gl, exporter)

	memory := mocks.EasyMockDeviceMemory(ctrl)

	first, err := cache.Acquire(memory, 128)
	require.NoError(t, err)

	second, err := cache.Acquire(memory, 128)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, exporter.memoryExports)
	require.Len(t, gl.MemoryImports, 1)
	require.Equal(t, 128, gl.MemoryImports[0].Size)
	require.Equal(t, 1, cache.Count())
}

func TestCacheImportsDistinctMemoriesSeparately(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	exporter := &fakeExporter{}
	cache := testCache(gl, exporter)

	memoryOne := mocks.EasyMockDeviceMemory(ctrl)
	memoryTwo := mocks.EasyMockDeviceMemory(ctrl)

	first, err := cache.Acquire(memoryOne, 128)
	require.NoError(t, err)

	second, err := cache.Acquire(memoryTwo, 256)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Equal(t, 2, exporter.memoryExports)
	require.Equal(t, 2, cache.Count())
}

func TestCacheDestroysOnLastRelease(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	exporter := &fakeExporter{}
	cache := testCache(gl, exporter)

	memory := mocks.EasyMockDeviceMemory(ctrl)

	object, err := cache.Acquire(memory, 128)
	require.NoError(t, err)
	_, err = cache.Acquire(memory, 128)
	require.NoError(t, err)
	_, err = cache.Acquire(memory, 128)
	require.NoError(t, err)

	require.NoError(t, cache.ReleaseMemoryObject(memory))
	require.NoError(t, cache.ReleaseMemoryObject(memory))
	require.Empty(t, gl.DeletedMemoryObjects)

	require.NoError(t, cache.ReleaseMemoryObject(memory))
	require.Len(t, gl.DeletedMemoryObjects, 1)
	require.Equal(t, object, gl.DeletedMemoryObjects[0])
	require.Equal(t, 0, cache.Count())
}

func TestCacheClosesHandleWhenImportFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	gl.ImportError = errors.New("out of import slots")
	exporter := &fakeExporter{}
	cache := testCache(gl, exporter)

	memory := mocks.EasyMockDeviceMemory(ctrl)

	_, err := cache.Acquire(memory, 128)
	require.Error(t, err)

	// The failed import never consumed the exported value, so the cache
	// must close it rather than strand it.
	require.Equal(t, []uintptr{1}, exporter.closed)
	require.Len(t, gl.DeletedMemoryObjects, 1)
	require.Equal(t, 0, cache.Count())

	// A later acquire retries from scratch once imports work again.
	gl.ImportError = nil
	_, err = cache.Acquire(memory, 128)
	require.NoError(t, err)
	require.Equal(t, 2, exporter.memoryExports)
	require.Equal(t, 1, cache.Count())
}

func TestCacheReleaseWithoutAcquireFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	cache := testCache(gl, &fakeExporter{})

	memory := mocks.EasyMockDeviceMemory(ctrl)

	require.Error(t, cache.ReleaseMemoryObject(memory))
}

func TestCacheClearOnEmptyCacheIsANoOp(t *testing.T) {
	gl := glexttest.NewFakeAPI()
	cache := testCache(gl, &fakeExporter{})

	cache.Clear()

	require.Empty(t, gl.DeletedMemoryObjects)
	require.Equal(t, 0, cache.Count())
}

func TestCacheClearForceDestroysLiveImports(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gl := glexttest.NewFakeAPI()
	cache := testCache(gl, &fakeExporter{})

	memory := mocks.EasyMockDeviceMemory(ctrl)
	_, err := cache.Acquire(memory, 128)
	require.NoError(t, err)

	cache.Clear()

	require.Len(t, gl.DeletedMemoryObjects, 1)
	require.Equal(t, 0, cache.Count())
}
