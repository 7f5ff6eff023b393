package app

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// GLFW event handling and the GL context must stay on the main OS
	// thread
	runtime.LockOSThread()
}

// CreateWindow initializes GLFW and creates a window with a GL 4.5 core
// context, made current on the calling thread. The interop entry points
// require at least GL 4.5 plus the external-object extensions, which are
// verified separately once the context is live.
func CreateWindow(config WindowConfig) (*glfw.Window, error) {
	err := glfw.Init()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize glfw")
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 5)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(config.Width, config.Height, config.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "failed to create a window")
	}

	window.MakeContextCurrent()
	if config.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	return window, nil
}
