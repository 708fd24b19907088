package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
)

// compileProgram compiles both stages and links them with the standard attributes bound
// to their fixed locations.
func compileProgram(src gpu.ProgramSource) (uint32, error) {
	vert, err := compileShader(src.Vertex, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)

	frag, err := compileShader(src.Fragment, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	for i, name := range gpu.AttributeLocations {
		gl.BindAttribLocation(prog, uint32(i), gl.Str(name+"\x00"))
	}
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		log := programLog(prog)
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("%w: %s", shader.ErrLink, log)
	}
	return prog, nil
}

func compileShader(source string, stage uint32, name string) (uint32, error) {
	s := gl.CreateShader(stage)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(s, 1, csource, nil)
	free()
	gl.CompileShader(s)

	var status int32
	gl.GetShaderiv(s, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, max(logLen, 1))
		gl.GetShaderInfoLog(s, logLen, nil, &log[0])
		gl.DeleteShader(s)
		return 0, fmt.Errorf("%s shader: %w: %s", name, shader.ErrCompile, string(log))
	}
	return s, nil
}

func programLog(prog uint32) string {
	var logLen int32
	gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
	if logLen == 0 {
		return ""
	}
	log := make([]byte, logLen)
	gl.GetProgramInfoLog(prog, logLen, nil, &log[0])
	return string(log)
}
