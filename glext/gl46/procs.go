package gl46

/*
#include <stddef.h>
#include <stdint.h>

typedef unsigned int GLenum;
typedef unsigned int GLuint;
typedef int GLint;
typedef int GLsizei;
typedef ptrdiff_t GLsizeiptr;
typedef uint64_t GLuint64;

typedef void (*PFNGLCREATEMEMORYOBJECTSEXTPROC)(GLsizei n, GLuint *memoryObjects);
typedef void (*PFNGLDELETEMEMORYOBJECTSEXTPROC)(GLsizei n, const GLuint *memoryObjects);
typedef void (*PFNGLNAMEDBUFFERSTORAGEMEMEXTPROC)(GLuint buffer, GLsizeiptr size, GLuint memory, GLuint64 offset);
typedef void (*PFNGLTEXTURESTORAGEMEM2DEXTPROC)(GLuint texture, GLsizei levels, GLenum internalFormat, GLsizei width, GLsizei height, GLuint memory, GLuint64 offset);
typedef void (*PFNGLGENSEMAPHORESEXTPROC)(GLsizei n, GLuint *semaphores);
typedef void (*PFNGLDELETESEMAPHORESEXTPROC)(GLsizei n, const GLuint *semaphores);
typedef void (*PFNGLSIGNALSEMAPHOREEXTPROC)(GLuint semaphore, GLuint numBufferBarriers, const GLuint *buffers, GLuint numTextureBarriers, const GLuint *textures, const GLenum *dstLayouts);
typedef void (*PFNGLWAITSEMAPHOREEXTPROC)(GLuint semaphore, GLuint numBufferBarriers, const GLuint *buffers, GLuint numTextureBarriers, const GLuint *textures, const GLenum *srcLayouts);

static void callCreateMemoryObjectsEXT(void *fn, GLsizei n, GLuint *memoryObjects) {
	((PFNGLCREATEMEMORYOBJECTSEXTPROC)fn)(n, memoryObjects);
}

static void callDeleteMemoryObjectsEXT(void *fn, GLsizei n, const GLuint *memoryObjects) {
	((PFNGLDELETEMEMORYOBJECTSEXTPROC)fn)(n, memoryObjects);
}

static void callNamedBufferStorageMemEXT(void *fn, GLuint buffer, GLsizeiptr size, GLuint memory, GLuint64 offset) {
	((PFNGLNAMEDBUFFERSTORAGEMEMEXTPROC)fn)(buffer, size, memory, offset);
}

static void callTextureStorageMem2DEXT(void *fn, GLuint texture, GLsizei levels, GLenum internalFormat, GLsizei width, GLsizei height, GLuint memory, GLuint64 offset) {
	((PFNGLTEXTURESTORAGEMEM2DEXTPROC)fn)(texture, levels, internalFormat, width, height, memory, offset);
}

static void callGenSemaphoresEXT(void *fn, GLsizei n, GLuint *semaphores) {
	((PFNGLGENSEMAPHORESEXTPROC)fn)(n, semaphores);
}

static void callDeleteSemaphoresEXT(void *fn, GLsizei n, const GLuint *semaphores) {
	((PFNGLDELETESEMAPHORESEXTPROC)fn)(n, semaphores);
}

static void callSignalSemaphoreEXT(void *fn, GLuint semaphore, GLuint numTextureBarriers, const GLuint *textures, const GLenum *dstLayouts) {
	((PFNGLSIGNALSEMAPHOREEXTPROC)fn)(semaphore, 0, NULL, numTextureBarriers, textures, dstLayouts);
}

static void callWaitSemaphoreEXT(void *fn, GLuint semaphore, GLuint numTextureBarriers, const GLuint *textures, const GLenum *srcLayouts) {
	((PFNGLWAITSEMAPHOREEXTPROC)fn)(semaphore, 0, NULL, numTextureBarriers, textures, srcLayouts);
}
*/
import "C"
import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gpuinterop/glvk/glext"
)

// extProcs holds the GL_EXT_memory_object / GL_EXT_semaphore entry
// points resolved from the current context. The import procs differ
// per platform and are filled in by loadPlatformProcs.
type extProcs struct {
	createMemoryObjects   unsafe.Pointer
	deleteMemoryObjects   unsafe.Pointer
	namedBufferStorageMem unsafe.Pointer
	textureStorageMem2D   unsafe.Pointer
	genSemaphores         unsafe.Pointer
	deleteSemaphores      unsafe.Pointer
	signalSemaphore       unsafe.Pointer
	waitSemaphore         unsafe.Pointer

	importMemoryHandle    unsafe.Pointer
	importSemaphoreHandle unsafe.Pointer
}

type procLoader struct {
	missing []string
}

func (l *procLoader) load(name string) unsafe.Pointer {
	addr := glfw.GetProcAddress(name)
	if addr == nil {
		l.missing = append(l.missing, name)
	}
	return addr
}

func loadExtProcs() (*extProcs, error) {
	var loader procLoader

	procs := &extProcs{
		createMemoryObjects:   loader.load("glCreateMemoryObjectsEXT"),
		deleteMemoryObjects:   loader.load("glDeleteMemoryObjectsEXT"),
		namedBufferStorageMem: loader.load("glNamedBufferStorageMemEXT"),
		textureStorageMem2D:   loader.load("glTextureStorageMem2DEXT"),
		genSemaphores:         loader.load("glGenSemaphoresEXT"),
		deleteSemaphores:      loader.load("glDeleteSemaphoresEXT"),
		signalSemaphore:       loader.load("glSignalSemaphoreEXT"),
		waitSemaphore:         loader.load("glWaitSemaphoreEXT"),
	}
	loadPlatformProcs(procs, &loader)

	if len(loader.missing) > 0 {
		return nil, errors.Newf("the context does not expose required entry points: %v", loader.missing)
	}
	return procs, nil
}

func (a API) CreateMemoryObject() (glext.MemoryObject, error) {
	var mem C.GLuint
	C.callCreateMemoryObjectsEXT(a.procs.createMemoryObjects, 1, &mem)
	if err := checkGLError("glCreateMemoryObjectsEXT"); err != nil {
		return 0, err
	}
	return glext.MemoryObject(mem), nil
}

func (a API) DeleteMemoryObject(mem glext.MemoryObject) {
	raw := C.GLuint(mem)
	C.callDeleteMemoryObjectsEXT(a.procs.deleteMemoryObjects, 1, &raw)
}

func (a API) BufferStorage(buf glext.Buffer, size int, mem glext.MemoryObject, offset int) error {
	C.callNamedBufferStorageMemEXT(a.procs.namedBufferStorageMem, C.GLuint(buf), C.GLsizeiptr(size), C.GLuint(mem), C.GLuint64(offset))
	return checkGLError("glNamedBufferStorageMemEXT")
}

func (a API) TextureStorage2D(tex glext.Texture, levels int, internalFormat uint32, width, height int, mem glext.MemoryObject, offset int) error {
	C.callTextureStorageMem2DEXT(a.procs.textureStorageMem2D, C.GLuint(tex), C.GLsizei(levels), C.GLenum(internalFormat), C.GLsizei(width), C.GLsizei(height), C.GLuint(mem), C.GLuint64(offset))
	return checkGLError("glTextureStorageMem2DEXT")
}

func (a API) GenSemaphore() (glext.Semaphore, error) {
	var sem C.GLuint
	C.callGenSemaphoresEXT(a.procs.genSemaphores, 1, &sem)
	if err := checkGLError("glGenSemaphoresEXT"); err != nil {
		return 0, err
	}
	return glext.Semaphore(sem), nil
}

func (a API) DeleteSemaphore(sem glext.Semaphore) {
	raw := C.GLuint(sem)
	C.callDeleteSemaphoresEXT(a.procs.deleteSemaphores, 1, &raw)
}

func (a API) SignalSemaphore(sem glext.Semaphore, textures []glext.Texture, dstLayouts []glext.Layout) error {
	texIDs, layouts := barrierLists(textures, dstLayouts)
	C.callSignalSemaphoreEXT(a.procs.signalSemaphore, C.GLuint(sem), C.GLuint(len(texIDs)), texturePtr(texIDs), layoutPtr(layouts))
	return checkGLError("glSignalSemaphoreEXT")
}

func (a API) WaitSemaphore(sem glext.Semaphore, textures []glext.Texture, srcLayouts []glext.Layout) error {
	texIDs, layouts := barrierLists(textures, srcLayouts)
	C.callWaitSemaphoreEXT(a.procs.waitSemaphore, C.GLuint(sem), C.GLuint(len(texIDs)), texturePtr(texIDs), layoutPtr(layouts))
	return checkGLError("glWaitSemaphoreEXT")
}

func texturePtr(ids []uint32) *C.GLuint {
	if len(ids) == 0 {
		return nil
	}
	return (*C.GLuint)(unsafe.Pointer(&ids[0]))
}

func layoutPtr(layouts []uint32) *C.GLenum {
	if len(layouts) == 0 {
		return nil
	}
	return (*C.GLenum)(unsafe.Pointer(&layouts[0]))
}
