// Package commands implements the recover CLI, which runs saved model
// output through the recovery pipeline offline.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/recovery"
)

type options struct {
	kind    string
	input   string
	pretty  bool
	verbose bool
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "recover",
		Short: "Recover a typed object from raw model output",
		Long: `recover reads raw model output from a file or stdin and prints the
recovered object as JSON, tagged with the tier that produced it:

  exact       the text parsed and validated as-is
  repaired    parsed after structural repairs
  heuristic   reconstructed field by field; values may be defaults

Input is never rejected: empty or garbled text yields the kind's default object.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(cmd, opts)
		},
	}
	root.Flags().StringVarP(&opts.kind, "kind", "k", "", "kind to recover (see 'recover kinds')")
	root.Flags().StringVarP(&opts.input, "input", "i", "-", "file to read, '-' for stdin")
	root.Flags().BoolVar(&opts.pretty, "pretty", false, "indent the JSON output")
	root.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline steps to stderr")
	_ = root.MarkFlagRequired("kind")

	root.AddCommand(newKindsCmd())
	return root
}

// Execute runs the CLI with os.Args.
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the kinds that can be recovered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range domain.AllKinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func runRecover(cmd *cobra.Command, opts *options) error {
	kind, err := domain.ParseKind(opts.kind)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd, opts.input)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		if logger, err = cfg.Build(); err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	obj := recovery.NewPipeline(recovery.WithLogger(logger)).Recover(raw, kind)

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(obj)
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
