package cmd

import (
	"context"
	"fmt"

	"github.com/conneroisu/sitepipe/internal/pipeline"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:     "compile",
	Aliases: []string{"c"},
	Short:   "Compile sources into the intermediate tree",
	Long: `Compile markup, styles, scripts and images from the source tree into the
intermediate tree. Independent stages run concurrently; the command exits
nonzero when any stage fails, lint violations included.

Examples:
  sitepipe compile
  sitepipe compile --root ./site --log-level debug`,
	RunE: runNodeCommand(pipeline.NodeCompile),
}

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Compile, then optimize into the build tree",
	Long: `Run compile, then copy the intermediate tree into the build tree, purge and
minify the final stylesheet and optimize images. Images whose source did not
change since the last build are skipped.

Examples:
  sitepipe build
  SITEPIPE_LINT_ENABLED=false sitepipe build`,
	RunE: runNodeCommand(pipeline.NodeBuild),
}

func init() {
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(buildCmd)
}

func runNodeCommand(node string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return runNode(ctx, node)
	}
}

// runNode runs one named node of the configured pipeline.
func runNode(ctx context.Context, node string) error {
	_, logger, p, err := setup()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Run(ctx, node); err != nil {
		logger.Error(ctx, err, "Run failed", "node", node)
		return fmt.Errorf("%s failed: %w", node, err)
	}
	logger.Info(ctx, "Run finished", "node", node)
	return nil
}
