package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/formula/internal/ast"
	"github.com/roach88/formula/internal/compiler"
	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Database string // optional: record diagnostics here
}

// ModuleReport is the check outcome of one module.
type ModuleReport struct {
	Module   string                     `json:"module"`
	Rules    int                        `json:"rules"`
	Errors   []compiler.ValidationError `json:"errors"`
	Warnings []compiler.CycleWarning    `json:"warnings"`
}

// CheckResult holds the check outcome of a specs directory.
type CheckResult struct {
	Valid      bool           `json:"valid"`
	Files      int            `json:"files"`
	Modules    []ModuleReport `json:"modules"`
	ErrorCount int            `json:"error_count"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <specs-dir>",
		Short: "Compile specs and check rule safety",
		Long: `Compile the CUE modules in a directory and check every rule.

Reports unsafe rules (body variables no constraint binds), heads that
cannot be instantiated, unknown symbols and arity mismatches. Recursive
symbol groups are reported as warnings.

Exit codes:
  0 - All rules are safe
  1 - One or more modules failed to compile or validate
  2 - Command error (missing directory, no CUE files, database error)

Examples:
  formula check ./specs
  formula check ./specs --db ./formula.db
  formula check ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record diagnostics in this SQLite database")

	return cmd
}

func runCheck(opts *CheckOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		code, message := ErrCodeGeneric, "failed to load specs"
		var loadErr *LoadError
		if len(loadErrors) > 0 && errors.As(loadErrors[0], &loadErr) {
			code, message = loadErr.Code, loadErr.Message
		}
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	result := CheckResult{
		Files:   loadResult.FileCount,
		Modules: make([]ModuleReport, 0, len(loadResult.Programs)+len(loadErrors)),
	}

	for _, err := range loadErrors {
		result.Modules = append(result.Modules, compileErrorReport(err))
	}
	for _, prog := range loadResult.Programs {
		formatter.VerboseLog("Checking module: %s", prog.Name)
		report := ModuleReport{
			Module:   prog.Name,
			Rules:    len(prog.Rules),
			Errors:   compiler.Validate(prog),
			Warnings: compiler.AnalyzeRecursion(prog),
		}
		if report.Errors == nil {
			report.Errors = []compiler.ValidationError{}
		}
		result.Modules = append(result.Modules, report)
	}

	for _, m := range result.Modules {
		result.ErrorCount += len(m.Errors)
	}
	result.Valid = result.ErrorCount == 0

	if opts.Database != "" {
		if err := recordDiagnostics(cmd.Context(), opts.Database, result.Modules); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record diagnostics", err)
		}
		formatter.VerboseLog("Recorded %d diagnostic(s) in %s", result.ErrorCount, opts.Database)
	}

	return outputCheckResult(formatter, result)
}

func compileErrorReport(err error) ModuleReport {
	ve := compiler.ValidationError{Code: ErrCodeCompileFailed, Message: err.Error()}
	report := ModuleReport{Warnings: []compiler.CycleWarning{}}

	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		report.Module = loadErr.Module
		ve.Field = loadErr.Field
		ve.Message = loadErr.Message
		if loadErr.Pos.IsValid() {
			ve.Pos = ast.Pos{File: loadErr.Pos.Filename(), Line: loadErr.Pos.Line(), Column: loadErr.Pos.Column()}
		}
	}
	report.Errors = []compiler.ValidationError{ve}
	return report
}

// recordDiagnostics stores every error as a content-addressed diagnostic.
// Rechecking unchanged specs writes nothing new.
func recordDiagnostics(ctx context.Context, path string, modules []ModuleReport) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, m := range modules {
		for _, ve := range m.Errors {
			rec := ir.DiagnosticRecord{
				Module:  m.Module,
				Code:    ve.Code,
				Field:   ve.Field,
				Message: ve.Message,
				File:    ve.Pos.File,
				Line:    ve.Pos.Line,
				Column:  ve.Pos.Column,
			}
			if rec.ID, err = ir.DiagnosticID(rec); err != nil {
				return err
			}
			if err := st.WriteDiagnostic(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func outputCheckResult(formatter *OutputFormatter, result CheckResult) error {
	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			first := firstError(result.Modules)
			resp.Error = &CLIError{Code: first.Code, Message: first.Message}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		for _, m := range result.Modules {
			formatter.Printf("module %s: %d rule(s)\n", m.Module, m.Rules)
			for _, ve := range m.Errors {
				formatter.Printf("  %s\n", ve.Error())
			}
			for _, w := range m.Warnings {
				formatter.Printf("  %s: %s\n", w.Level, w.Message)
			}
		}
		if result.Valid {
			formatter.Printf("OK: %d module(s) checked\n", len(result.Modules))
		} else {
			formatter.Printf("FAIL: %d error(s)\n", result.ErrorCount)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("check failed with %d error(s)", result.ErrorCount))
	}
	return nil
}

func firstError(modules []ModuleReport) compiler.ValidationError {
	for _, m := range modules {
		if len(m.Errors) > 0 {
			return m.Errors[0]
		}
	}
	return compiler.ValidationError{}
}
