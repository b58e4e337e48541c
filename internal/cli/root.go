package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every command.
type RootOptions struct {
	Format  string
	Verbose bool
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storefrontctl",
		Short: "Operate the storefront and its chat satellite",
		Long: `Operator tooling for the storefront core.

Applies database migrations and runs single passes of the satellite's
background duties: reconciliation, cleanup and broadcasts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log progress to stderr")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewBroadcastCommand(opts))

	return cmd
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
}

// print writes v as indented JSON, or as the text produced by text.
func (o *RootOptions) print(cmd *cobra.Command, v any, text func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if o.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}
