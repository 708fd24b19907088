package shader_test

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/engine/gpu/gputest"
	"github.com/Faultbox/helix/internal/engine/shader"
)

func TestEveryProgramComposes(t *testing.T) {
	lib := shader.NewLibrary()
	for _, name := range lib.Programs() {
		t.Run(name, func(t *testing.T) {
			src, err := lib.Source(name, nil)
			require.NoError(t, err)
			assert.Equal(t, name, src.Name)
			for _, stage := range []string{src.Vertex, src.Fragment} {
				assert.True(t, strings.HasPrefix(stage, shader.GLSLVersion+"\n"))
				assert.NotContains(t, stage, "#include")
				assert.Contains(t, stage, "void main()")
			}
		})
	}
}

func TestDefinesAreSortedAfterVersion(t *testing.T) {
	lib := shader.NewLibrary()
	src, err := lib.Source(shader.ProgramLitDir, map[string]string{
		shader.DefineShadow:       "",
		shader.DefineNumCascades:  "2",
		shader.DefineLightingGGX:  "",
		shader.DefineShadowFilter: shader.ShadowFilterPCF,
	})
	require.NoError(t, err)

	lines := strings.Split(src.Fragment, "\n")
	assert.Equal(t, []string{
		shader.GLSLVersion,
		"#define HX_LIGHTING_GGX",
		"#define HX_MAX_SKINNING_JOINTS 64",
		"#define HX_NUM_CASCADES 2",
		"#define HX_SHADOW",
		"#define HX_SHADOW_FILTER 1",
	}, lines[:6])
}

func TestIncludesExpandOnce(t *testing.T) {
	lib := shader.NewLibraryFS(fstest.MapFS{
		"a.glsl":    {Data: []byte("#include \"b.glsl\"\n#include \"b.glsl\"\nA\n")},
		"b.glsl":    {Data: []byte("B\n")},
		"loop.glsl": {Data: []byte("#include \"loop.glsl\"\nL")},
		"bad.glsl":  {Data: []byte("#include nope\n")},
	})
	got, err := lib.Get("a.glsl")
	require.NoError(t, err)
	assert.Equal(t, "B\nA\n", got)

	got, err = lib.Get("loop.glsl")
	require.NoError(t, err)
	assert.Equal(t, "L\n", got)

	_, err = lib.Get("bad.glsl")
	assert.Error(t, err)
	_, err = lib.Get("missing.glsl")
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "copy", shader.Key("copy", nil))
	assert.Equal(t, "gbuffer|B=2|a", shader.Key("gbuffer", map[string]string{"a": "", "B": "2"}))
}

func TestUnknownProgram(t *testing.T) {
	_, err := shader.NewLibrary().Source("nope", nil)
	assert.True(t, errors.Is(err, shader.ErrUnknownProgram))
}

func TestCacheBuildsOnce(t *testing.T) {
	dev := gputest.New()
	cache := shader.NewCache(dev, shader.NewLibrary())

	defines := map[string]string{shader.DefineColorMap: ""}
	p1, err := cache.Program(shader.ProgramUnlit, defines)
	require.NoError(t, err)
	p2, err := cache.Program(shader.ProgramUnlit, map[string]string{shader.DefineColorMap: ""})
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, dev.Count("CreateProgram"))

	_, err = cache.Program(shader.ProgramUnlit, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
}

func TestCacheRemembersFailures(t *testing.T) {
	dev := gputest.New()
	dev.FailPrograms[shader.ProgramBlur] = true
	cache := shader.NewCache(dev, shader.NewLibrary())

	_, err := cache.Program(shader.ProgramBlur, nil)
	require.Error(t, err)
	assert.True(t, cache.Cached(shader.ProgramBlur, nil))
	_, err = cache.Program(shader.ProgramBlur, nil)
	require.Error(t, err)
	assert.Equal(t, 1, dev.Count("CreateProgram"))

	dev.FailPrograms[shader.ProgramBlur] = false
	cache.Forget(shader.ProgramBlur, nil)
	p, err := cache.Program(shader.ProgramBlur, nil)
	require.NoError(t, err)
	assert.Equal(t, shader.ProgramBlur, p.Name())
}
