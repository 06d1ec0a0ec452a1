package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pepplus/internal/adapters/mutation"
	"pepplus/internal/permission"
)

// MutateOptions holds flags for the mutate command.
type MutateOptions struct {
	*RootOptions
	File string
	User string
	Caps []string
}

// NewMutateCommand creates the mutate command.
func NewMutateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mutate",
		Short: "Run one mutation request against the configured store",
		Long: `Run one mutation request against the configured store.

The request is read as YAML (JSON is accepted too) from --file, or from
stdin when --file is "-". The response envelope is printed as JSON.

Example:
  operation: create
  entity_type: modulo_educacional
  attributes:
    codigo: M1
    nome: Nutricao`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMutate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "request file, - for stdin")
	cmd.Flags().StringVar(&opts.User, "user", "cli", "audit user id stamped on written rows")
	cmd.Flags().StringSliceVar(&opts.Caps, "caps", nil, "granted capability codes (default: all)")

	return cmd
}

// decodeRequest reads one mutation request from r.
func decodeRequest(r io.Reader) (mutation.Request, error) {
	var req mutation.Request
	if err := yaml.NewDecoder(r).Decode(&req); err != nil {
		return mutation.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func runMutate(cmd *cobra.Command, opts *MutateOptions) error {
	in := cmd.InOrStdin()
	if opts.File != "-" {
		f, err := os.Open(opts.File)
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		in = f
	}
	req, err := decodeRequest(in)
	if err != nil {
		return err
	}

	svc, closeStore, err := openService(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	principal := permission.NewUser(svc.Gate().Registry(), opts.User, parseCodes(opts.Caps)...)
	resp := mutation.NewEnvelope(svc, opts.logger()).Execute(cmd.Context(), principal, req)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if !resp.OK() {
		return ErrMutationFailed
	}
	return nil
}
