package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/formula/internal/compiler"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first module that fails to compile.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every module before returning.
	LoadModeCollectAll
)

// LoadResult contains the modules compiled from a specs directory.
type LoadResult struct {
	Programs  []*compiler.Program
	FileCount int
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Module  string // set for compile errors
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants shared by all CLI commands.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeScanError     = "E002"
	ErrCodeNoFiles       = "E003"
	ErrCodeLoadFailed    = "E004"
	ErrCodeNotFound      = "E005"
	ErrCodeBuildFailed   = "E006"
	ErrCodeCompileFailed = "E007"
	ErrCodeNoModules     = "E008"

	ErrCodeStore      = "E301" // database open/read/write failure
	ErrCodeScenario   = "E302" // scenario could not be loaded or built
	ErrCodeRunFailed  = "E303" // run stopped on a runtime error
	ErrCodeMismatch   = "E304" // replay diverged from the recorded outcome
	ErrCodeTestFailed = "E305" // one or more scenarios failed
)

// LoadSpecs loads every CUE file in dir as one instance and compiles the
// modules it defines.
//
// The instance is either a single module (it has a top-level rules field)
// or a struct of modules keyed by name:
//
//	graph: {symbols: {...}, rules: {...}}
//	tree:  {module: "Tree", symbols: {...}, rules: {...}}
//
// A keyed module without a module field is named after its key.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	modules, err := moduleValues(value)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating modules: %v", err)}}
	}
	if len(modules) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoModules, Message: fmt.Sprintf("no modules found in %s", dir)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	var errs []error
	for _, m := range modules {
		prog, err := compiler.CompileProgram(m.value)
		if err != nil {
			errs = append(errs, convertCompileError(err, m.label))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Programs = append(result.Programs, prog)
	}
	return result, errs
}

type moduleValue struct {
	label string
	value cue.Value
}

func moduleValues(v cue.Value) ([]moduleValue, error) {
	if v.LookupPath(cue.ParsePath("rules")).Exists() {
		return []moduleValue{{label: compiler.DefaultModuleName, value: v}}, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, err
	}
	var out []moduleValue
	for iter.Next() {
		mv := iter.Value()
		if mv.Kind() != cue.StructKind || !mv.LookupPath(cue.ParsePath("rules")).Exists() {
			continue
		}
		label := iter.Label()
		if !mv.LookupPath(cue.ParsePath("module")).Exists() {
			mv = mv.FillPath(cue.ParsePath("module"), label)
		}
		out = append(out, moduleValue{label: label, value: mv})
	}
	return out, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, module string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Module:  module,
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeCompileFailed,
		Module:  module,
		Message: err.Error(),
	}
}
