package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stratosim/internal/config"
)

// ValidationResult holds validation output for JSON rendering.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Scenarios  int      `json:"scenarios,omitempty"`
	Trials     int      `json:"trials,omitempty"`
	StartYear  int      `json:"startYear,omitempty"`
	EndYear    int      `json:"endYear,omitempty"`
	Commands   int      `json:"commands,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program.yaml>",
		Short: "Validate a simulation program without running it",
		Long: `Validate a YAML simulation program.

Checks the schema and every command's fields, and reports all violations
at once rather than stopping at the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	program, err := config.Load(path)
	if err != nil {
		var ce *config.Error
		if !errors.As(err, &ce) {
			return WrapExitError(ExitCommandError, "failed to load program", err)
		}

		switch ce.Code {
		case config.ErrCodeUnreadable:
			if ferr := formatter.Error(string(ce.Code), ce.Message, nil); ferr != nil {
				return ferr
			}
			return WrapExitError(ExitCommandError, "failed to read program", err)
		default:
			if ferr := formatter.Error(string(ce.Code), ce.Message, violationDetails(ce, opts.Format)); ferr != nil {
				return ferr
			}
			return NewExitError(ExitFailure, "program invalid")
		}
	}

	commands := 0
	for _, sc := range program.Scenarios {
		commands += len(sc.Commands)
	}
	formatter.VerboseLog("loaded %s", path)

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:     true,
			Scenarios: len(program.Scenarios),
			Trials:    program.Trials,
			StartYear: program.StartYear,
			EndYear:   program.EndYear,
			Commands:  commands,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"program valid: %d scenario(s), %d trial(s) each, years %d-%d, %d command(s)\n",
		len(program.Scenarios), program.Trials, program.StartYear, program.EndYear, commands)
	return nil
}

// violationDetails shapes violations for the active format: a slice for
// JSON, a pre-joined block for text.
func violationDetails(ce *config.Error, format string) any {
	if len(ce.Violations) == 0 {
		return nil
	}
	if format == "json" {
		return ce.Violations
	}
	details := ""
	for _, v := range ce.Violations {
		details += "  - " + v + "\n"
	}
	return details[:len(details)-1]
}
