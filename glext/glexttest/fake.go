// Package glexttest provides a recording in-memory implementation of
// glext.API for tests that need to observe import, binding, and
// semaphore traffic without a live GL context.
package glexttest

import (
	"github.com/cockroachdb/errors"
	"github.com/gpuinterop/glvk/glext"
)

// SemaphoreOp records a single GPU-side signal or wait inserted on a
// fake semaphore.
type SemaphoreOp struct {
	Semaphore glext.Semaphore
	Textures  []glext.Texture
	Layouts   []glext.Layout
}

// MemoryImport records one ImportMemory call.
type MemoryImport struct {
	Object glext.MemoryObject
	Size   int
	Raw    uintptr
}

// BufferBinding records one BufferStorage call.
type BufferBinding struct {
	Buffer glext.Buffer
	Size   int
	Object glext.MemoryObject
	Offset int
}

// TextureBinding records one TextureStorage2D call.
type TextureBinding struct {
	Texture        glext.Texture
	Levels         int
	InternalFormat uint32
	Width, Height  int
	Object         glext.MemoryObject
	Offset         int
}

type FakeAPI struct {
	nextName uint32

	// Error, when set, is returned from every fallible call.
	Error error
	// ImportError, when set, is returned only from ImportMemory and
	// ImportSemaphore, so tests can fail an import after the object
	// creation that precedes it succeeded.
	ImportError error

	MemoryImports    []MemoryImport
	SemaphoreImports []uintptr
	BufferBindings   []BufferBinding
	TextureBindings  []TextureBinding

	Signals []SemaphoreOp
	Waits   []SemaphoreOp

	LiveMemoryObjects map[glext.MemoryObject]bool
	LiveSemaphores    map[glext.Semaphore]bool
	LiveBuffers       map[glext.Buffer]bool
	LiveTextures      map[glext.Texture]bool

	DeletedMemoryObjects []glext.MemoryObject
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		LiveMemoryObjects: make(map[glext.MemoryObject]bool),
		LiveSemaphores:    make(map[glext.Semaphore]bool),
		LiveBuffers:       make(map[glext.Buffer]bool),
		LiveTextures:      make(map[glext.Texture]bool),
	}
}

func (f *FakeAPI) nextID() uint32 {
	f.nextName++
	return f.nextName
}

func (f *FakeAPI) CreateMemoryObject() (glext.MemoryObject, error) {
	if f.Error != nil {
		return 0, f.Error
	}
	mem := glext.MemoryObject(f.nextID())
	f.LiveMemoryObjects[mem] = true
	return mem, nil
}

func (f *FakeAPI) ImportMemory(mem glext.MemoryObject, size int, raw uintptr) error {
	if f.Error != nil {
		return f.Error
	}
	if f.ImportError != nil {
		return f.ImportError
	}
	if !f.LiveMemoryObjects[mem] {
		return errors.Newf("import into unknown memory object %d", mem)
	}
	f.MemoryImports = append(f.MemoryImports, MemoryImport{Object: mem, Size: size, Raw: raw})
	return nil
}

func (f *FakeAPI) DeleteMemoryObject(mem glext.MemoryObject) {
	if !f.LiveMemoryObjects[mem] {
		panic(errors.Newf("double delete of memory object %d", mem))
	}
	delete(f.LiveMemoryObjects, mem)
	f.DeletedMemoryObjects = append(f.DeletedMemoryObjects, mem)
}

func (f *FakeAPI) CreateBuffer() (glext.Buffer, error) {
	if f.Error != nil {
		return 0, f.Error
	}
	buf := glext.Buffer(f.nextID())
	f.LiveBuffers[buf] = true
	return buf, nil
}

func (f *FakeAPI) BufferStorage(buf glext.Buffer, size int, mem glext.MemoryObject, offset int) error {
	if f.Error != nil {
		return f.Error
	}
	if !f.LiveMemoryObjects[mem] {
		return errors.Newf("buffer storage from unknown memory object %d", mem)
	}
	f.BufferBindings = append(f.BufferBindings, BufferBinding{Buffer: buf, Size: size, Object: mem, Offset: offset})
	return nil
}

func (f *FakeAPI) DeleteBuffer(buf glext.Buffer) {
	delete(f.LiveBuffers, buf)
}

func (f *FakeAPI) CreateTexture2D() (glext.Texture, error) {
	if f.Error != nil {
		return 0, f.Error
	}
	tex := glext.Texture(f.nextID())
	f.LiveTextures[tex] = true
	return tex, nil
}

func (f *FakeAPI) TextureStorage2D(tex glext.Texture, levels int, internalFormat uint32, width, height int, mem glext.MemoryObject, offset int) error {
	if f.Error != nil {
		return f.Error
	}
	if !f.LiveMemoryObjects[mem] {
		return errors.Newf("texture storage from unknown memory object %d", mem)
	}
	f.TextureBindings = append(f.TextureBindings, TextureBinding{
		Texture:        tex,
		Levels:         levels,
		InternalFormat: internalFormat,
		Width:          width,
		Height:         height,
		Object:         mem,
		Offset:         offset,
	})
	return nil
}

func (f *FakeAPI) SetTextureParameters(tex glext.Texture, minFilter, magFilter, wrap int32) {}

func (f *FakeAPI) DeleteTexture(tex glext.Texture) {
	delete(f.LiveTextures, tex)
}

func (f *FakeAPI) GenSemaphore() (glext.Semaphore, error) {
	if f.Error != nil {
		return 0, f.Error
	}
	sem := glext.Semaphore(f.nextID())
	f.LiveSemaphores[sem] = true
	return sem, nil
}

func (f *FakeAPI) ImportSemaphore(sem glext.Semaphore, raw uintptr) error {
	if f.Error != nil {
		return f.Error
	}
	if f.ImportError != nil {
		return f.ImportError
	}
	if !f.LiveSemaphores[sem] {
		return errors.Newf("import into unknown semaphore %d", sem)
	}
	f.SemaphoreImports = append(f.SemaphoreImports, raw)
	return nil
}

func (f *FakeAPI) DeleteSemaphore(sem glext.Semaphore) {
	if !f.LiveSemaphores[sem] {
		panic(errors.Newf("double delete of semaphore %d", sem))
	}
	delete(f.LiveSemaphores, sem)
}

func (f *FakeAPI) SignalSemaphore(sem glext.Semaphore, textures []glext.Texture, dstLayouts []glext.Layout) error {
	if f.Error != nil {
		return f.Error
	}
	f.Signals = append(f.Signals, SemaphoreOp{Semaphore: sem, Textures: textures, Layouts: dstLayouts})
	return nil
}

func (f *FakeAPI) WaitSemaphore(sem glext.Semaphore, textures []glext.Texture, srcLayouts []glext.Layout) error {
	if f.Error != nil {
		return f.Error
	}
	f.Waits = append(f.Waits, SemaphoreOp{Semaphore: sem, Textures: textures, Layouts: srcLayouts})
	return nil
}

// PendingSignals returns the number of signals submitted on sem that no
// wait has consumed yet, replaying the recorded traffic in order.
func (f *FakeAPI) PendingSignals(sem glext.Semaphore) int {
	pending := 0
	for _, op := range f.Signals {
		if op.Semaphore == sem {
			pending++
		}
	}
	for _, op := range f.Waits {
		if op.Semaphore == sem {
			pending--
		}
	}
	return pending
}
