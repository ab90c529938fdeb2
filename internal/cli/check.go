package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sluicehq/sluice/internal/engine"
	"github.com/sluicehq/sluice/internal/plugin"
	"github.com/sluicehq/sluice/internal/registry"
	"github.com/sluicehq/sluice/internal/schema"
)

// CheckResult is the output of a one-shot validation.
type CheckResult struct {
	FlowID string   `json:"flow_id"`
	Status string   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var validatorsDir string

	cmd := &cobra.Command{
		Use:   "check <flow-id> <payload.json>",
		Short: "Validate one payload against a flow's schemas",
		Long: `Validate a single payload file against a flow's schemas and custom
rules without running the service. Uses a throwaway session, so rules
that query prior payloads see an empty history.

Exits 0 when the payload is valid, 1 when invalid, 2 on command errors.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, validatorsDir, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&validatorsDir, "validators", "validators", "validators root directory")

	return cmd
}

func runCheck(opts *RootOptions, validatorsDir, flowID, payloadPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(payloadPath)
	if err != nil {
		_ = formatter.Failure(ErrCodeNotFound, err.Error())
		return WrapExitError(ExitCommandError, "reading payload", err)
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		_ = formatter.Failure(ErrCodeBadInput, "payload is not valid JSON: "+err.Error())
		return WrapExitError(ExitCommandError, "parsing payload", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	// Throwaway registry: check validates against schemas and rules only,
	// with no prior history.
	reg := registry.New()
	sid := reg.StartSession()
	if err := reg.StartFlow(flowID, ""); err != nil {
		_ = formatter.Failure(ErrCodeBadInput, err.Error())
		return WrapExitError(ExitCommandError, "starting flow", err)
	}

	eng := engine.New(schema.NewStore(validatorsDir), plugin.NewLoader(validatorsDir), log)
	qc := registry.NewQueryContext(reg, sid, flowID)
	verdict := eng.Validate(context.Background(), flowID, payload, qc)

	formatter.VerboseLog("candidates: %v", verdict.Candidates)

	result := CheckResult{
		FlowID: flowID,
		Status: string(verdict.Status),
		Errors: verdict.Errors,
	}
	if err := outputCheckResult(formatter, result); err != nil {
		return err
	}
	if !verdict.Valid() {
		return &ExitError{Code: ExitFailure, Message: "payload is invalid"}
	}
	return nil
}

func outputCheckResult(f *OutputFormatter, result CheckResult) error {
	if f.Format == "json" {
		return f.Success(result)
	}
	if result.Status == string(registry.StatusValid) {
		return f.Success("valid")
	}
	if err := f.Success("invalid"); err != nil {
		return err
	}
	for i, msg := range result.Errors {
		if _, err := io.WriteString(f.Writer, formatErrorLine(i, msg)); err != nil {
			return err
		}
	}
	return nil
}
