package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sluicehq/sluice/internal/schema"
)

// SchemaListing reports the resolvable schemas for one flow.
type SchemaListing struct {
	FlowID string   `json:"flow_id,omitempty"`
	Flow   []string `json:"flow_schemas"`
	Common []string `json:"common_schemas"`
}

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand(rootOpts *RootOptions) *cobra.Command {
	var validatorsDir string

	cmd := &cobra.Command{
		Use:   "schemas [flow-id]",
		Short: "List schema files resolvable for a flow",
		Long: `List the schema files the engine would enumerate: the flow's own
schemas plus the shared fallback. With no flow id, lists shared schemas
only.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flowID := ""
			if len(args) > 0 {
				flowID = args[0]
			}
			return runSchemas(rootOpts, validatorsDir, flowID, cmd)
		},
	}

	cmd.Flags().StringVar(&validatorsDir, "validators", "validators", "validators root directory")

	return cmd
}

func runSchemas(opts *RootOptions, validatorsDir, flowID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store := schema.NewStore(validatorsDir)
	listing := SchemaListing{
		FlowID: flowID,
		Flow:   baseNames(store.ListFlowSchemas(flowID)),
		Common: baseNames(store.ListCommonSchemas()),
	}
	if flowID == "" {
		listing.Flow = []string{}
	}

	if formatter.Format == "json" {
		return formatter.Success(listing)
	}

	var b strings.Builder
	if flowID != "" {
		fmt.Fprintf(&b, "flow %s: %s\n", flowID, joinOrNone(listing.Flow))
	}
	fmt.Fprintf(&b, "common: %s", joinOrNone(listing.Common))
	return formatter.Success(b.String())
}

func baseNames(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}
	return out
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
