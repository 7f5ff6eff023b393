package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/gl/all-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gpuinterop/glvk/compute"
	"github.com/gpuinterop/glvk/glext"
	"github.com/gpuinterop/glvk/interop"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// The texture can be regrown at runtime; this caps how far.
const maxTextureSize = 16384

// Application drives the frame loop: it owns the GL consumer state (the
// shared vertex buffer, triangle program, and vertex array) and
// coordinates with the compute producer through the stage's semaphore
// pair.
type Application struct {
	logger *slog.Logger
	window *glfw.Window

	allocator *interop.Allocator
	stage     *compute.Stage

	vertexBuffer *interop.SharedBuffer
	program      uint32
	vertexArray  uint32

	pendingExtent *core1_0.Extent2D

	frameCount  int
	lastFPSTime float64
}

// New builds the GL consumer on top of an already-created stage. The GL
// context must be current on the calling thread.
func New(logger *slog.Logger, window *glfw.Window, allocator *interop.Allocator, stage *compute.Stage) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vertices := packVertices(triangleVertices(0))
	vertexBuffer, _, err := allocator.CreateSharedBuffer(len(vertices), core1_0.BufferUsageVertexBuffer, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the shared vertex buffer")
	}

	_, err = vertexBuffer.WriteData(vertices, 0)
	if err != nil {
		_ = vertexBuffer.Destroy()
		return nil, err
	}

	program, err := buildProgram()
	if err != nil {
		_ = vertexBuffer.Destroy()
		return nil, err
	}

	app := &Application{
		logger: logger,
		window: window,

		allocator: allocator,
		stage:     stage,

		vertexBuffer: vertexBuffer,
		program:      program,
		vertexArray:  buildVertexArray(uint32(vertexBuffer.GLBuffer())),
	}

	window.SetKeyCallback(app.onKey)

	return app, nil
}

// onKey handles close and texture-size controls. Bracket keys halve or
// double the shared texture's extent; the actual resize happens at the
// top of the next frame, outside the signal/wait bracket.
func (a *Application) onKey(window *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}

	switch key {
	case glfw.KeyEscape:
		window.SetShouldClose(true)
	case glfw.KeyLeftBracket:
		a.requestScaledExtent(false)
	case glfw.KeyRightBracket:
		a.requestScaledExtent(true)
	}
}

func (a *Application) requestScaledExtent(grow bool) {
	extent := a.stage.Texture().Extent()
	if a.pendingExtent != nil {
		extent = *a.pendingExtent
	}

	if grow {
		extent.Width *= 2
		extent.Height *= 2
		if extent.Width > maxTextureSize {
			extent.Width = maxTextureSize
		}
		if extent.Height > maxTextureSize {
			extent.Height = maxTextureSize
		}
	} else {
		extent.Width /= 2
		extent.Height /= 2
		if extent.Width < 1 {
			extent.Width = 1
		}
		if extent.Height < 1 {
			extent.Height = 1
		}
	}

	a.pendingExtent = &extent
}

// Animate rewrites the shared vertex buffer for elapsed seconds t. The
// buffer is host-coherent, so the GL draw that follows observes the new
// positions without any semaphore traffic.
func (a *Application) Animate(t float32) error {
	_, err := a.vertexBuffer.WriteData(packVertices(triangleVertices(t)), 0)
	return err
}

// RenderFrame runs one iteration of the sharing protocol: hand the
// texture to Vulkan, submit the compute dispatch, take the texture back,
// and draw the textured triangle. All cross-API ordering is queued GPU
// work; the host never waits on either semaphore.
func (a *Application) RenderFrame(elapsed float32) error {
	textures := a.stage.GLHandles()

	err := a.stage.Semaphores().SignalReady(textures, []glext.Layout{glext.LayoutShaderReadOnly})
	if err != nil {
		return err
	}

	err = a.stage.Submit(elapsed)
	if err != nil {
		return err
	}

	err = a.stage.Semaphores().WaitComplete(textures, []glext.Layout{glext.LayoutColorAttachment})
	if err != nil {
		return err
	}

	gl.BindVertexArray(a.vertexArray)
	gl.BindTextureUnit(0, uint32(textures[0]))
	gl.UseProgram(a.program)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindTextureUnit(0, 0)

	return nil
}

func (a *Application) logFPS(now float64) {
	a.frameCount++
	if now-a.lastFPSTime < 1.0 {
		return
	}

	a.logger.LogAttrs(context.Background(), slog.LevelInfo, "frame rate",
		slog.Int("fps", a.frameCount),
		slog.Int("texture.width", a.stage.Texture().Extent().Width),
		slog.Int("texture.height", a.stage.Texture().Extent().Height),
	)
	a.frameCount = 0
	a.lastFPSTime = now
}

// Run drives the frame loop until the window closes.
func (a *Application) Run() error {
	start := glfw.GetTime()
	a.lastFPSTime = start

	for !a.window.ShouldClose() {
		glfw.PollEvents()

		width, height := a.window.GetFramebufferSize()
		if width == 0 || height == 0 {
			// Minimized; block until an event restores the window
			// instead of spinning on an empty frame.
			glfw.WaitEvents()
			continue
		}

		if a.pendingExtent != nil {
			err := a.stage.Resize(*a.pendingExtent)
			if err != nil {
				return err
			}
			a.pendingExtent = nil
		}

		gl.Viewport(0, 0, int32(width), int32(height))
		gl.ClearColor(0.1, 0.1, 0.4, 1.0)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		now := glfw.GetTime()
		elapsed := float32(now - start)

		err := a.Animate(elapsed)
		if err != nil {
			return err
		}

		err = a.RenderFrame(elapsed)
		if err != nil {
			return err
		}

		a.logFPS(now)
		a.window.SwapBuffers()
	}

	return nil
}

// Destroy tears down the consumer state. The stage and allocator belong
// to the caller and are destroyed separately.
func (a *Application) Destroy() {
	gl.DeleteVertexArrays(1, &a.vertexArray)
	gl.DeleteProgram(a.program)

	if a.vertexBuffer != nil {
		err := a.vertexBuffer.Destroy()
		if err != nil {
			a.logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to destroy the shared vertex buffer",
				slog.Any("error", err),
			)
		}
		a.vertexBuffer = nil
	}
}
