package app

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/gl/all-core/gl"
)

// One vertex is vec3 position + vec2 uv, tightly packed.
const (
	vertexStride = 5 * 4
	vertexCount  = 3
	uvOffset     = 3 * 4
)

const vertexShaderSource = `#version 450
layout(location = 0) in vec3 inVertex;
layout(location = 1) in vec2 inUV;
layout(location = 0) out vec2 outUV;

void main()
{
    outUV = inUV;
    gl_Position = vec4(inVertex, 1.0f);
}
` + "\x00"

const fragmentShaderSource = `#version 450
layout(location = 0) in vec2 inUV;
layout(location = 0) out vec4 fragColor;

uniform sampler2D sharedTexture;

void main()
{
    vec3 color = texture(sharedTexture, inUV).rgb;
    fragColor = vec4(color, 1);
}
` + "\x00"

type vertex struct {
	pos [3]float32
	uv  [2]float32
}

// triangleVertices returns the triangle at elapsed seconds t. Three of
// the position components move with t; everything else is fixed.
func triangleVertices(t float32) [vertexCount]vertex {
	sin64, cos64 := math.Sincos(float64(t) * 0.5)
	sin := float32(sin64)
	cos := float32(cos64)

	return [vertexCount]vertex{
		{pos: [3]float32{sin, -1, 0}, uv: [2]float32{0, 0}},
		{pos: [3]float32{1, cos, 0}, uv: [2]float32{1, 0}},
		{pos: [3]float32{-sin, 1, 0}, uv: [2]float32{0.5, 1}},
	}
}

func packVertices(vertices [vertexCount]vertex) []byte {
	data := make([]byte, 0, vertexCount*vertexStride)
	for _, v := range vertices {
		for _, f := range v.pos {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
		}
		for _, f := range v.uv {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
		}
	}
	return data
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)

	csources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		infoLog := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(infoLog))

		gl.DeleteShader(shader)
		return 0, errors.Newf("failed to compile shader: %s", infoLog)
	}

	return shader, nil
}

// buildProgram compiles and links the triangle's vertex and fragment
// shaders.
func buildProgram() (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		infoLog := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(infoLog))

		gl.DeleteProgram(program)
		return 0, errors.Newf("failed to link shader program: %s", infoLog)
	}

	return program, nil
}

// buildVertexArray sets up a vertex array reading position and uv from
// the shared buffer.
func buildVertexArray(buffer uint32) uint32 {
	const posLocation = 0
	const uvLocation = 1

	var vertexArray uint32
	gl.CreateVertexArrays(1, &vertexArray)
	gl.EnableVertexArrayAttrib(vertexArray, posLocation)
	gl.EnableVertexArrayAttrib(vertexArray, uvLocation)

	gl.VertexArrayAttribFormat(vertexArray, posLocation, 3, gl.FLOAT, false, 0)
	gl.VertexArrayAttribBinding(vertexArray, posLocation, 0)
	gl.VertexArrayAttribFormat(vertexArray, uvLocation, 2, gl.FLOAT, false, uvOffset)
	gl.VertexArrayAttribBinding(vertexArray, uvLocation, 0)

	gl.VertexArrayVertexBuffer(vertexArray, 0, buffer, 0, vertexStride)

	return vertexArray
}
