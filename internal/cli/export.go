package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pepplus/internal/blob"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Prefix string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of every current row to the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "snapshot key prefix (default: snapshots/<utc timestamp>)")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	ctx := cmd.Context()
	store, err := blob.Open(ctx, opts.Config.BlobStore())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	svc, closeStore, err := openService(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	snap, err := svc.ExportSnapshot(ctx, store, opts.Prefix)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
