package cli

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/starcore/internal/compiler"
	"github.com/roach88/starcore/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Containers []string                   `json:"containers,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schemas-dir>",
		Short: "Validate CUE container schemas",
		Long: `Validate the container declarations of a CUE package.

Every declaration is compiled and checked for property names, kinds,
element types and clashes with the built-in containers. All errors
are reported, not just the first.

Exit codes:
  0 - All schemas valid
  1 - One or more validation errors
  2 - Command error (missing directory, no CUE files, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemasDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := compiler.LoadDir(schemasDir, compiler.LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *compiler.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			if err := formatter.Error(loadErr.Code, loadErr.Message, nil); err != nil {
				return err
			}
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		return WrapExitError(ExitCommandError, "load schemas", loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemasDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		}
	}

	// Each schema is registered after it validates so later declarations
	// are checked against earlier ones as well as the built-ins.
	reg := schema.Builtin()
	result := ValidationResult{}
	for i := range loadResult.Schemas {
		s := &loadResult.Schemas[i]
		formatter.VerboseLog("Validating container: %s", s.Type)

		errs := compiler.Validate(s, reg)
		if len(errs) == 0 {
			if err := reg.Register(*s); err != nil {
				errs = append(errs, compiler.ValidationError{Field: "type", Message: err.Error(), Code: compiler.ErrContainerType})
			}
		}
		if len(errs) > 0 {
			line := lineOf(loadResult.Positions[s.Type])
			for _, e := range errs {
				e.Field = fmt.Sprintf("container.%s.%s", s.Type, e.Field)
				if e.Line == 0 {
					e.Line = line
				}
				validationErrors = append(validationErrors, e)
			}
			continue
		}
		result.Containers = append(result.Containers, s.Type)
	}

	result.Valid = len(validationErrors) == 0
	result.Errors = validationErrors
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("✓ All schemas valid (%s)", strings.Join(result.Containers, ", ")))
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	message := fmt.Sprintf("%d validation error(s)", len(result.Errors))
	if formatter.JSON() {
		if err := formatter.Result(result, true, result.Errors[0].Code, message); err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✗ %s\n", message)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	return NewExitError(ExitFailure, message)
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}
