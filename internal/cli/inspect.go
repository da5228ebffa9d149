package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	DBPath    string
	Container string
}

// CheckpointDetail is the full checkpoint of one container type.
type CheckpointDetail struct {
	ContainerType string          `json:"container_type"`
	Digest        string          `json:"digest"`
	Seq           int64           `json:"seq"`
	Snapshot      json.RawMessage `json:"snapshot"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show stored container checkpoints",
		Long: `List the checkpoints held by a hub database, or print the full
snapshot of one container type with --container.

Examples:
  starcore inspect --db ./starcore.db
  starcore inspect --db ./starcore.db --container ReplicatedContainer --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the hub database (required)")
	cmd.Flags().StringVar(&opts.Container, "container", "", "print the snapshot of one container type")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// store.Open would create a missing database.
	if _, err := os.Stat(opts.DBPath); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if opts.Container != "" {
		cp, ok, err := st.ReadCheckpoint(ctx, opts.Container)
		if err != nil {
			return WrapExitError(ExitFailure, "read checkpoint", err)
		}
		if !ok {
			message := fmt.Sprintf("no checkpoint for %s", opts.Container)
			if err := formatter.Error("E_NO_CHECKPOINT", message, nil); err != nil {
				return err
			}
			return NewExitError(ExitFailure, message)
		}
		body, err := ir.MarshalCanonical(cp.Snapshot.IR())
		if err != nil {
			return WrapExitError(ExitFailure, "encode snapshot", err)
		}
		detail := CheckpointDetail{ContainerType: cp.ContainerType, Digest: cp.Digest, Seq: cp.Seq, Snapshot: body}
		if formatter.JSON() {
			return formatter.Success(detail)
		}
		fmt.Fprintf(formatter.Writer, "%s seq=%d digest=%s\n%s\n", detail.ContainerType, detail.Seq, detail.Digest, body)
		return nil
	}

	summaries, err := st.ListCheckpoints(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "list checkpoints", err)
	}
	if formatter.JSON() {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No checkpoints stored.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTAINER\tSEQ\tPROPERTIES\tDIGEST")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.ContainerType, s.Seq, s.Properties, s.Digest)
	}
	return tw.Flush()
}
