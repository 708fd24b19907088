// Package shader holds the GLSL library, composes program sources from it and caches
// the programs a device builds from them.
package shader

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

var (
	// ErrCompile is returned when a shader stage fails to compile.
	ErrCompile = errors.New("shader compile failed")
	// ErrLink is returned when a program fails to link.
	ErrLink = errors.New("shader link failed")
	// ErrUnknownProgram is returned for program names the library does not define.
	ErrUnknownProgram = errors.New("unknown shader program")
)

// GLSLVersion is prepended to every stage.
const GLSLVersion = "#version 410 core"

//go:embed glsl
var files embed.FS

type programFiles struct {
	vertex   string
	fragment string
	defines  map[string]string
}

var programs = map[string]programFiles{
	ProgramUnlit:           {"mesh.vert", "unlit.frag", nil},
	ProgramLitBase:         {"mesh.vert", "lit_base.frag", nil},
	ProgramLitDir:          {"mesh.vert", "lit_dir.frag", nil},
	ProgramLitPoint:        {"mesh.vert", "lit_point.frag", nil},
	ProgramLitProbe:        {"mesh.vert", "lit_probe.frag", nil},
	ProgramGBuffer:         {"mesh.vert", "gbuffer.frag", nil},
	ProgramApplyGBuffer:    {"mesh.vert", "apply_gbuffer.frag", nil},
	ProgramShadowDepth:     {"mesh.vert", "shadow_depth.frag", nil},
	ProgramDeferredDir:     {"quad.vert", "deferred_dir.frag", nil},
	ProgramDeferredPoint:   {"quad.vert", "deferred_point.frag", nil},
	ProgramDeferredProbe:   {"quad.vert", "deferred_probe.frag", nil},
	ProgramDeferredAmbient: {"quad.vert", "deferred_ambient.frag", nil},
	ProgramCopy:            {"quad.vert", "copy.frag", nil},
	ProgramCopyGamma:       {"quad.vert", "copy.frag", map[string]string{DefineGammaEncode: ""}},
	ProgramDebugView:       {"quad.vert", "debug_view.frag", nil},
	ProgramBlur:            {"quad.vert", "blur.frag", nil},
	ProgramFog:             {"quad.vert", "fog.frag", nil},
	ProgramSSAO:            {"quad.vert", "ssao.frag", nil},
	ProgramToneMap:         {"quad.vert", "tonemap.frag", nil},
}

// Library resolves program names to GLSL sources.
type Library struct {
	fsys fs.FS
}

// NewLibrary returns a library over the embedded GLSL files.
func NewLibrary() *Library {
	sub, err := fs.Sub(files, "glsl")
	if err != nil {
		panic(err)
	}
	return &Library{fsys: sub}
}

// NewLibraryFS returns a library reading GLSL files from fsys, for live shader editing.
func NewLibraryFS(fsys fs.FS) *Library {
	return &Library{fsys: fsys}
}

// Programs returns the names of all programs, sorted.
func (l *Library) Programs() []string {
	return slices.Sorted(maps.Keys(programs))
}

// Get returns one GLSL file with its includes expanded.
func (l *Library) Get(name string) (string, error) {
	var sb strings.Builder
	if err := l.expand(&sb, name, map[string]bool{}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (l *Library) expand(sb *strings.Builder, name string, seen map[string]bool) error {
	if seen[name] {
		return nil
	}
	seen[name] = true
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	for _, line := range strings.SplitAfter(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if inc, ok := strings.CutPrefix(trimmed, "#include"); ok {
			file, err := strconv.Unquote(strings.TrimSpace(inc))
			if err != nil {
				return fmt.Errorf("%s: bad include %q", name, trimmed)
			}
			if err := l.expand(sb, path.Join(path.Dir(name), file), seen); err != nil {
				return err
			}
			continue
		}
		sb.WriteString(line)
	}
	if !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteByte('\n')
	}
	return nil
}

// Source composes the vertex and fragment text of a program with the given defines.
// Every stage starts with the version line followed by one #define per entry, sorted.
func (l *Library) Source(name string, defines map[string]string) (gpu.ProgramSource, error) {
	p, ok := programs[name]
	if !ok {
		return gpu.ProgramSource{}, fmt.Errorf("%q: %w", name, ErrUnknownProgram)
	}
	all := map[string]string{
		DefineMaxSkinningJoints: strconv.Itoa(MaxSkinningJoints),
	}
	maps.Copy(all, p.defines)
	maps.Copy(all, defines)

	header := defineBlock(all)
	vs, err := l.Get(p.vertex)
	if err != nil {
		return gpu.ProgramSource{}, err
	}
	frag, err := l.Get(p.fragment)
	if err != nil {
		return gpu.ProgramSource{}, err
	}
	return gpu.ProgramSource{
		Name:     name,
		Vertex:   header + vs,
		Fragment: header + frag,
		Defines:  all,
	}, nil
}

func defineBlock(defines map[string]string) string {
	var sb strings.Builder
	sb.WriteString(GLSLVersion)
	sb.WriteByte('\n')
	for _, k := range slices.Sorted(maps.Keys(defines)) {
		sb.WriteString("#define ")
		sb.WriteString(k)
		if v := defines[k]; v != "" {
			sb.WriteByte(' ')
			sb.WriteString(v)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Key identifies a program variant.
func Key(name string, defines map[string]string) string {
	if len(defines) == 0 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(defines)) {
		sb.WriteByte('|')
		sb.WriteString(k)
		if v := defines[k]; v != "" {
			sb.WriteByte('=')
			sb.WriteString(v)
		}
	}
	return sb.String()
}
