package glext

// MemoryObject is an OpenGL memory object name created by
// glCreateMemoryObjectsEXT. Buffer and texture storage is bound from it
// after external memory has been imported.
type MemoryObject uint32

// Semaphore is an OpenGL semaphore name created by glGenSemaphoresEXT
type Semaphore uint32

// Buffer is an OpenGL buffer object name
type Buffer uint32

// Texture is an OpenGL texture object name
type Texture uint32

// Layout communicates the image layout a texture is in (or must be
// transitioned to) when ownership passes across a Semaphore signal or
// wait. Values are the GL_LAYOUT_*_EXT enums from GL_EXT_semaphore.
type Layout uint32

const (
	LayoutGeneral                Layout = 0x958D
	LayoutColorAttachment        Layout = 0x958E
	LayoutDepthStencilAttachment Layout = 0x958F
	LayoutDepthStencilReadOnly   Layout = 0x9590
	LayoutShaderReadOnly         Layout = 0x9591
	LayoutTransferSrc            Layout = 0x9592
	LayoutTransferDst            Layout = 0x9593
)

// Texture storage & sampler parameters, mirroring the GL enums so the
// real backend can pass them through unmodified.
const (
	InternalFormatRGBA8 uint32 = 0x8058

	FilterNearest int32 = 0x2600
	FilterLinear  int32 = 0x2601

	WrapRepeat      int32 = 0x2901
	WrapClampToEdge int32 = 0x812F
)

// API is the slice of the immediate-mode API the interop core needs:
// the external-objects entry points of GL_EXT_memory_object and
// GL_EXT_semaphore, plus creation and deletion of the buffer/texture
// objects whose storage is bound from imported memory.
//
// Raw platform handles are passed as uintptr: a POSIX file descriptor
// on one platform family, a win32 kernel handle on the other. Which one
// a backend expects is fixed at compile time, matching the handle type
// the exporting side used. All calls must be made from the thread that
// owns the GL context.
type API interface {
	// CreateMemoryObject creates an empty memory object. ImportMemory
	// must be called on it before any storage can be bound.
	CreateMemoryObject() (MemoryObject, error)
	// ImportMemory imports external memory of the given byte size into
	// the memory object. On the file-descriptor platform the descriptor
	// is consumed by a successful import and must not be closed by the
	// caller afterward.
	ImportMemory(mem MemoryObject, size int, raw uintptr) error
	DeleteMemoryObject(mem MemoryObject)

	CreateBuffer() (Buffer, error)
	// BufferStorage binds size bytes of the imported memory object at
	// the given byte offset as the buffer's immutable data store.
	BufferStorage(buf Buffer, size int, mem MemoryObject, offset int) error
	DeleteBuffer(buf Buffer)

	CreateTexture2D() (Texture, error)
	// TextureStorage2D binds the texture's storage to the imported
	// memory object at the given byte offset.
	TextureStorage2D(tex Texture, levels int, internalFormat uint32, width, height int, mem MemoryObject, offset int) error
	SetTextureParameters(tex Texture, minFilter, magFilter, wrap int32)
	DeleteTexture(tex Texture)

	GenSemaphore() (Semaphore, error)
	ImportSemaphore(sem Semaphore, raw uintptr) error
	DeleteSemaphore(sem Semaphore)
	// SignalSemaphore inserts a GPU-side signal operation, transitioning
	// the listed textures to the paired layouts for the waiting API.
	SignalSemaphore(sem Semaphore, textures []Texture, dstLayouts []Layout) error
	// WaitSemaphore inserts a GPU-side wait operation; the listed
	// textures are expected to arrive in the paired layouts. It never
	// blocks the calling CPU thread.
	WaitSemaphore(sem Semaphore, textures []Texture, srcLayouts []Layout) error
}
