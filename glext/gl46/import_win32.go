//go:build windows

package gl46

/*
#include <stdint.h>

typedef unsigned int GLenum;
typedef unsigned int GLuint;
typedef uint64_t GLuint64;

#define GL_HANDLE_TYPE_OPAQUE_WIN32_EXT 0x9587

typedef void (*PFNGLIMPORTMEMORYWIN32HANDLEEXTPROC)(GLuint memory, GLuint64 size, GLenum handleType, void *handle);
typedef void (*PFNGLIMPORTSEMAPHOREWIN32HANDLEEXTPROC)(GLuint semaphore, GLenum handleType, void *handle);

static void callImportMemoryWin32HandleEXT(void *fn, GLuint memory, GLuint64 size, void *handle) {
	((PFNGLIMPORTMEMORYWIN32HANDLEEXTPROC)fn)(memory, size, GL_HANDLE_TYPE_OPAQUE_WIN32_EXT, handle);
}

static void callImportSemaphoreWin32HandleEXT(void *fn, GLuint semaphore, void *handle) {
	((PFNGLIMPORTSEMAPHOREWIN32HANDLEEXTPROC)fn)(semaphore, GL_HANDLE_TYPE_OPAQUE_WIN32_EXT, handle);
}
*/
import "C"
import (
	"unsafe"

	"github.com/gpuinterop/glvk/glext"
)

// On win32 a handle is a kernel object handle duplicated for this
// process. Importing does not consume it- the exporting side remains
// responsible for closing it.

func loadPlatformProcs(procs *extProcs, loader *procLoader) {
	procs.importMemoryHandle = loader.load("glImportMemoryWin32HandleEXT")
	procs.importSemaphoreHandle = loader.load("glImportSemaphoreWin32HandleEXT")
}

func (a API) ImportMemory(mem glext.MemoryObject, size int, raw uintptr) error {
	C.callImportMemoryWin32HandleEXT(a.procs.importMemoryHandle, C.GLuint(mem), C.GLuint64(size), unsafe.Pointer(raw))
	return checkGLError("glImportMemoryWin32HandleEXT")
}

func (a API) ImportSemaphore(sem glext.Semaphore, raw uintptr) error {
	C.callImportSemaphoreWin32HandleEXT(a.procs.importSemaphoreHandle, C.GLuint(sem), unsafe.Pointer(raw))
	return checkGLError("glImportSemaphoreWin32HandleEXT")
}
