//go:build !windows

package gl46

/*
#include <stdint.h>

typedef unsigned int GLenum;
typedef unsigned int GLuint;
typedef int GLint;
typedef uint64_t GLuint64;

#define GL_HANDLE_TYPE_OPAQUE_FD_EXT 0x9586

typedef void (*PFNGLIMPORTMEMORYFDEXTPROC)(GLuint memory, GLuint64 size, GLenum handleType, GLint fd);
typedef void (*PFNGLIMPORTSEMAPHOREFDEXTPROC)(GLuint semaphore, GLenum handleType, GLint fd);

static void callImportMemoryFdEXT(void *fn, GLuint memory, GLuint64 size, GLint fd) {
	((PFNGLIMPORTMEMORYFDEXTPROC)fn)(memory, size, GL_HANDLE_TYPE_OPAQUE_FD_EXT, fd);
}

static void callImportSemaphoreFdEXT(void *fn, GLuint semaphore, GLint fd) {
	((PFNGLIMPORTSEMAPHOREFDEXTPROC)fn)(semaphore, GL_HANDLE_TYPE_OPAQUE_FD_EXT, fd);
}
*/
import "C"
import (
	"github.com/gpuinterop/glvk/glext"
)

// On the POSIX platform family a handle is an opaque file descriptor.
// A successful import consumes the descriptor- the GL implementation
// owns it from then on and the caller must not close it.

func loadPlatformProcs(procs *extProcs, loader *procLoader) {
	procs.importMemoryHandle = loader.load("glImportMemoryFdEXT")
	procs.importSemaphoreHandle = loader.load("glImportSemaphoreFdEXT")
}

func (a API) ImportMemory(mem glext.MemoryObject, size int, raw uintptr) error {
	C.callImportMemoryFdEXT(a.procs.importMemoryHandle, C.GLuint(mem), C.GLuint64(size), C.GLint(raw))
	return checkGLError("glImportMemoryFdEXT")
}

func (a API) ImportSemaphore(sem glext.Semaphore, raw uintptr) error {
	C.callImportSemaphoreFdEXT(a.procs.importSemaphoreHandle, C.GLuint(sem), C.GLint(raw))
	return checkGLError("glImportSemaphoreFdEXT")
}
