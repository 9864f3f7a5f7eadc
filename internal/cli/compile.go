package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled catalog and specs.
type CompilationResult struct {
	Model *ir.Model  `json:"model"`
	Specs []*ir.Spec `json:"specs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [specs-dir]",
		Short: "Compile and validate delete specs",
		Long: `Compile the CUE catalog and delete specs of a directory and print
the resolved spec tree.

Without a directory the embedded imaging specs are compiled. Every entry
path is checked against the catalog and every sub-spec reference is
resolved; cycles between specs are rejected.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runCompile(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if specsDir == "" {
		formatter.VerboseLog("Compiling embedded specs")
	} else {
		formatter.VerboseLog("Compiling specs in %s", specsDir)
	}

	reg, err := LoadRegistry(specsDir)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	result := &CompilationResult{Model: reg.Model()}
	for i := 0; i < reg.Len(); i++ {
		result.Specs = append(result.Specs, reg.At(i))
		formatter.VerboseLog("Compiled spec: %s", reg.At(i).Name)
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)})
		}
	}

	return outputCompileSuccess(formatter, reg, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, reg *compiler.Registry, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d type(s), %d spec(s)\n\n", len(result.Model.Order), len(result.Specs))

	for _, spec := range result.Specs {
		fmt.Fprintf(w, "%s (%s)\n", spec.Name, spec.Variant)
		for _, e := range spec.Entries {
			line := fmt.Sprintf("  %s %s", e.Path, e.Op)
			if e.Qualifier != "" {
				line += " " + e.Qualifier
			}
			if e.HasSubSpec() {
				line += " -> " + reg.At(e.SubSpec).Name
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled specs to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a compilation error. Compilation errors are
// command-level errors (exit code 2).
func outputCompileError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	if formatter.Format == "json" {
		_ = formatter.Error(loadErr.Code, loadErr.Message, positionDetails(loadErr))
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		if loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", loadErr.Code, strings.TrimSpace(loadErr.Message))
	}
	return WrapExitError(ExitCommandError, "compilation failed", loadErr)
}

func positionDetails(e *LoadError) map[string]any {
	if !e.Pos.IsValid() {
		return nil
	}
	return map[string]any{
		"file":   e.Pos.Filename(),
		"line":   e.Pos.Line(),
		"column": e.Pos.Column(),
	}
}

// writeIRToFile writes the compilation result to a file as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
