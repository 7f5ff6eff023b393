package gl46

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/gl/all-core/gl"
	"github.com/gpuinterop/glvk/glext"
)

// API implements glext.API on top of the go-gl bindings, resolving the
// GL_EXT_memory_object and GL_EXT_semaphore entry points at runtime
// since the generated bindings do not carry them. gl.Init must have
// succeeded on the calling thread's context before New is called.
type API struct {
	procs *extProcs
}

// New verifies the external-objects extensions are exposed by the
// current context and resolves their entry points.
func New() (API, error) {
	if !Supported() {
		return API{}, errors.New("the context does not expose GL_EXT_memory_object and GL_EXT_semaphore")
	}

	procs, err := loadExtProcs()
	if err != nil {
		return API{}, err
	}
	return API{procs: procs}, nil
}

// Supported reports whether the external-objects extensions this
// backend relies on are exposed by the current context.
func Supported() bool {
	var count int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &count)

	var haveMemoryObject, haveSemaphore bool
	for i := int32(0); i < count; i++ {
		name := gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i)))
		switch name {
		case "GL_EXT_memory_object":
			haveMemoryObject = true
		case "GL_EXT_semaphore":
			haveSemaphore = true
		}
	}

	return haveMemoryObject && haveSemaphore
}

func checkGLError(operation string) error {
	errCode := gl.GetError()
	if errCode != gl.NO_ERROR {
		return errors.Newf("%s failed with GL error 0x%04x", operation, errCode)
	}
	return nil
}

func (a API) CreateBuffer() (glext.Buffer, error) {
	var buf uint32
	gl.CreateBuffers(1, &buf)
	if err := checkGLError("glCreateBuffers"); err != nil {
		return 0, err
	}
	return glext.Buffer(buf), nil
}

func (a API) DeleteBuffer(buf glext.Buffer) {
	raw := uint32(buf)
	gl.DeleteBuffers(1, &raw)
}

func (a API) CreateTexture2D() (glext.Texture, error) {
	var tex uint32
	gl.CreateTextures(gl.TEXTURE_2D, 1, &tex)
	if err := checkGLError("glCreateTextures"); err != nil {
		return 0, err
	}
	return glext.Texture(tex), nil
}

func (a API) SetTextureParameters(tex glext.Texture, minFilter, magFilter, wrap int32) {
	gl.TextureParameteri(uint32(tex), gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TextureParameteri(uint32(tex), gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TextureParameteri(uint32(tex), gl.TEXTURE_WRAP_S, wrap)
	gl.TextureParameteri(uint32(tex), gl.TEXTURE_WRAP_T, wrap)
}

func (a API) DeleteTexture(tex glext.Texture) {
	raw := uint32(tex)
	gl.DeleteTextures(1, &raw)
}

func barrierLists(textures []glext.Texture, layouts []glext.Layout) ([]uint32, []uint32) {
	if len(textures) != len(layouts) {
		panic("semaphore texture barrier list does not match its layout list")
	}

	texIDs := make([]uint32, len(textures))
	rawLayouts := make([]uint32, len(layouts))
	for i := range textures {
		texIDs[i] = uint32(textures[i])
		rawLayouts[i] = uint32(layouts[i])
	}
	return texIDs, rawLayouts
}
