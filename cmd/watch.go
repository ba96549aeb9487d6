package cmd

import (
	"fmt"

	"github.com/conneroisu/sitepipe/internal/pipeline"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild on change and serve the intermediate tree with live reload",
	Long: `Watch the source subtrees, re-run the part of the task graph each change
affects and reload connected browsers after every successful rebuild. The
intermediate tree is served by a development server; a failed rebuild is
logged and watching continues.

The status of every binding is served at /_sitepipe/status.

Examples:
  sitepipe watch
  sitepipe watch --port 8080 --no-initial-compile`,
	RunE: runWatch,
}

var noInitialCompile bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	watchCmd.Flags().String("host", "localhost", "Host to bind to")
	watchCmd.Flags().BoolVar(&noInitialCompile, "no-initial-compile", false, "Skip the compile run before watching")

	_ = viper.BindPFlag("server.port", watchCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", watchCmd.Flags().Lookup("host"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, logger, p, err := setup()
	if err != nil {
		return err
	}
	defer p.Close()

	status := watch.NewStatus()
	srv := server.New(server.Options{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Root: p.Paths().Temp.Root,
	}, status, logger)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if cfg.Development.InitialCompile && !noInitialCompile {
		if err := p.Run(ctx, pipeline.NodeCompile); err != nil {
			logger.Warn(ctx, err, "Initial compile failed, watching anyway")
		}
	}

	bindings, err := p.Bindings(srv)
	if err != nil {
		return err
	}
	coordinator := watch.NewCoordinator(bindings, p.Runner(), logger, watch.Options{
		Debounce: cfg.Watch.Debounce,
		Status:   status,
	})

	if _, err := p.WatchNode(coordinator, srv); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n", p.Paths().Temp.Root, srv.URL())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return p.Run(ctx, pipeline.NodeWatch)
}
