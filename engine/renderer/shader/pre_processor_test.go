package shader

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreProcessorDefinesAndConditionals(t *testing.T) {
	p := NewPreProcessor(nil)
	src := strings.Join([]string{
		"#define COUNT 4",
		"let a = COUNT;",
		"let b = COUNTER;",
		"#ifdef FAST",
		"fast",
		"#ifndef COUNT",
		"never",
		"#endif",
		"#else",
		"slow",
		"#endif",
		"#undef COUNT",
		"let c = COUNT;",
	}, "\n")

	out, err := p.Process("a.wgsl", src, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "let a = 4;")
	assert.Contains(t, out, "let b = COUNTER;")
	assert.Contains(t, out, "slow")
	assert.NotContains(t, out, "fast")
	assert.Contains(t, out, "let c = COUNT;")

	out, err = p.Process("a.wgsl", src, []Macro{{Name: "FAST"}})
	require.NoError(t, err)
	assert.Contains(t, out, "fast")
	assert.NotContains(t, out, "never")
	assert.NotContains(t, out, "slow")
}

func TestPreProcessorIncludes(t *testing.T) {
	files := fstest.MapFS{
		"shaders/a.wgsl":        {Data: []byte("#include \"b.wgsl\"\nfrom_a\n")},
		"shaders/b.wgsl":        {Data: []byte("#include \"lib.wgsl\"\nfrom_b\n")},
		"include/lib.wgsl":      {Data: []byte("from_lib\n")},
		"shaders/loop.wgsl":     {Data: []byte("#include \"loop.wgsl\"\n")},
		"shaders/bad_dir.wgsl":  {Data: []byte("#bogus\n")},
		"shaders/no_path.wgsl":  {Data: []byte("#include\n")},
		"shaders/missing.wgsl":  {Data: []byte("#include \"nowhere.wgsl\"\n")},
		"shaders/dangling.wgsl": {Data: []byte("#ifdef X\n")},
	}
	p := NewPreProcessor(files, "include")

	out, err := p.Process("shaders/a.wgsl", string(files["shaders/a.wgsl"].Data), nil)
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "from_lib"), strings.Index(out, "from_b"))
	assert.Less(t, strings.Index(out, "from_b"), strings.Index(out, "from_a"))
	assert.Equal(t, []string{"shaders/b.wgsl", "include/lib.wgsl"}, p.Includes())

	for _, name := range []string{"loop", "bad_dir", "no_path", "missing", "dangling"} {
		file := "shaders/" + name + ".wgsl"
		_, err := p.Process(file, string(files[file].Data), nil)
		assert.Error(t, err, name)
	}
}

func TestPreProcessorUnbalanced(t *testing.T) {
	p := NewPreProcessor(nil)
	for _, src := range []string{"#else", "#endif", "#ifdef A\n#else\n#else\n#endif", "#ifdef\n#endif", "#define 1x"} {
		_, err := p.Process("x.wgsl", src, nil)
		assert.Error(t, err, src)
	}
}
