// pre_processor.go implements the line-based preprocessor that runs before the WGSL front end.
// It understands:
//   - #define NAME [value]: defines a macro; later lines substitute whole-word occurrences
//   - #undef NAME
//   - #include "path": splices in another file, resolved against the including file's
//     directory first and then each include directory
//   - #ifdef NAME / #ifndef NAME / #else / #endif: conditional blocks, nestable
//
// Macros passed in CompileInfo are defined before the first line is read.
package shader

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

// maxIncludeDepth bounds #include nesting to catch include cycles.
const maxIncludeDepth = 16

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// fsys is the file system includes are read from.
	fsys fs.FS

	// includeDirs are searched in order after the including file's directory.
	includeDirs []string

	defines  map[string]string
	included []string
}

// PreProcessor expands directives and macros in shader source.
type PreProcessor interface {
	// Process expands the source of the file at filePath.
	//
	// Parameters:
	//   - filePath: the path of the source inside the file system, used to resolve includes
	//   - source: the raw source text
	//   - macros: definitions applied before the first line
	//
	// Returns:
	//   - string: the expanded source
	//   - error: an error if a directive is malformed, an include cannot be read or a block is unterminated
	Process(filePath, source string, macros []Macro) (string, error)

	// Includes returns the files spliced in by the most recent Process call, in first-seen order.
	//
	// Returns:
	//   - []string: the include paths
	Includes() []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a preprocessor reading includes from fsys.
//
// Parameters:
//   - fsys: the file system includes are read from
//   - includeDirs: directories searched after the including file's directory
//
// Returns:
//   - PreProcessor: a ready-to-use preprocessor
func NewPreProcessor(fsys fs.FS, includeDirs ...string) PreProcessor {
	return &preProcessor{fsys: fsys, includeDirs: includeDirs}
}

func (p *preProcessor) Process(filePath, source string, macros []Macro) (string, error) {
	p.defines = make(map[string]string, len(macros))
	p.included = p.included[:0]
	for _, m := range macros {
		if m.Name == "" {
			continue
		}
		p.defines[m.Name] = m.Value
	}
	var out strings.Builder
	if err := p.process(filePath, source, 0, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (p *preProcessor) Includes() []string {
	return p.included
}

// condFrame is one open #ifdef block.
type condFrame struct {
	parentActive bool
	taken        bool
	active       bool
	elseSeen     bool
}

func (p *preProcessor) process(filePath, source string, depth int, out *strings.Builder) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%s: includes nested deeper than %d", filePath, maxIncludeDepth)
	}
	var stack []condFrame
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	for i, line := range strings.Split(source, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				out.WriteString(p.substitute(line))
				out.WriteByte('\n')
			}
			continue
		}

		directive, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, "#"), " ")
		arg = strings.TrimSpace(arg)
		switch directive {
		case "ifdef", "ifndef":
			if arg == "" {
				return fmt.Errorf("%s:%d: #%s requires a name", filePath, lineNo, directive)
			}
			_, defined := p.defines[arg]
			cond := defined == (directive == "ifdef")
			parent := active()
			stack = append(stack, condFrame{parentActive: parent, taken: cond, active: parent && cond})
		case "else":
			if len(stack) == 0 {
				return fmt.Errorf("%s:%d: #else without #ifdef", filePath, lineNo)
			}
			top := &stack[len(stack)-1]
			if top.elseSeen {
				return fmt.Errorf("%s:%d: duplicate #else", filePath, lineNo)
			}
			top.elseSeen = true
			top.active = top.parentActive && !top.taken
		case "endif":
			if len(stack) == 0 {
				return fmt.Errorf("%s:%d: #endif without #ifdef", filePath, lineNo)
			}
			stack = stack[:len(stack)-1]
		case "define":
			if !active() {
				continue
			}
			name, value, _ := strings.Cut(arg, " ")
			if !identRe.MatchString(name) || identRe.FindString(name) != name {
				return fmt.Errorf("%s:%d: invalid macro name %q", filePath, lineNo, name)
			}
			p.defines[name] = strings.TrimSpace(value)
		case "undef":
			if active() {
				delete(p.defines, arg)
			}
		case "include":
			if !active() {
				continue
			}
			target := strings.Trim(arg, `"<>`)
			if target == "" {
				return fmt.Errorf("%s:%d: #include requires a path", filePath, lineNo)
			}
			resolved, data, err := p.readInclude(filePath, target)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", filePath, lineNo, err)
			}
			p.noteInclude(resolved)
			if err := p.process(resolved, string(data), depth+1, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s:%d: unknown directive #%s", filePath, lineNo, directive)
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("%s: %d unterminated #ifdef block(s)", filePath, len(stack))
	}
	return nil
}

func (p *preProcessor) readInclude(from, target string) (string, []byte, error) {
	candidates := []string{path.Join(path.Dir(from), target)}
	for _, dir := range p.includeDirs {
		candidates = append(candidates, path.Join(dir, target))
	}
	if p.fsys == nil {
		return "", nil, fmt.Errorf("include %q: no file system configured", target)
	}
	for _, c := range candidates {
		data, err := fs.ReadFile(p.fsys, c)
		if err == nil {
			return c, data, nil
		}
	}
	return "", nil, fmt.Errorf("include %q not found", target)
}

func (p *preProcessor) noteInclude(file string) {
	for _, f := range p.included {
		if f == file {
			return
		}
	}
	p.included = append(p.included, file)
}

// substitute replaces whole-word macro names with their values, once per line.
func (p *preProcessor) substitute(line string) string {
	if len(p.defines) == 0 {
		return line
	}
	return identRe.ReplaceAllStringFunc(line, func(word string) string {
		if v, ok := p.defines[word]; ok {
			return v
		}
		return word
	})
}
