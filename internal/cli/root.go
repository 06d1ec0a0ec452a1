// Package cli implements the pepplus command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"pepplus/internal/core"
	"pepplus/internal/permission"
	"pepplus/internal/platform/config"
)

// RootOptions holds state shared by every subcommand.
type RootOptions struct {
	Config config.Config
	Logger *slog.Logger

	logLevel string
	load     func() (config.Config, error)
}

// ErrMutationFailed is returned after a failed envelope has been printed.
var ErrMutationFailed = errors.New("mutation failed")

// NewRootCommand builds the pepplus command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{load: config.Load}

	cmd := &cobra.Command{
		Use:   "pepplus",
		Short: "PEP+ lifecycle engine",
		Long:  "Versioned-entity lifecycle engine for the PEP+ family education programme.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			opts.Config = cfg
			opts.Logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override PEPPLUS_LOG_LEVEL (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMutateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// openService opens the configured store and builds a service over it.
// The returned close func releases the store.
func openService(ctx context.Context, opts *RootOptions, extra ...core.ServiceOption) (*core.Service, func() error, error) {
	store, err := core.OpenPersistentStore(ctx, opts.Config.Storage())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	svcOpts := append([]core.ServiceOption{core.WithLogger(opts.logger())}, extra...)
	return core.NewService(store, svcOpts...), store.Close, nil
}

// logger returns Logger as a core.Logger, or nil when unset.
func (o *RootOptions) logger() core.Logger {
	if o.Logger == nil {
		return nil
	}
	return o.Logger
}

// parseCodes resolves a comma separated capability list. Empty grants every code.
func parseCodes(raw []string) []permission.Code {
	var codes []permission.Code
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				codes = append(codes, permission.Code(part))
			}
		}
	}
	if len(codes) == 0 {
		return permission.AllCodes()
	}
	return codes
}
