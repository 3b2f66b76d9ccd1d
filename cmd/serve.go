// File: cmd/serve.go
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/command"
	"github.com/xkilldash9x/agent-browser/internal/observability"
	"github.com/xkilldash9x/agent-browser/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser command server.",
	Long: `Starts the HTTP and WebSocket command server. Sessions are created
lazily on first use and reclaimed after the configured idle timeout.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides server.listen_addr)")
	serveCmd.Flags().Bool("headless", true, "run the browser headless")
	serveCmd.Flags().Bool("allow-private", false, "allow navigation to private network targets")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	defer observability.Sync()
	log := observability.GetLogger()

	if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless, _ = cmd.Flags().GetBool("headless")
	}
	if cmd.Flags().Changed("allow-private") {
		cfg.Sandbox.AllowPrivate, _ = cmd.Flags().GetBool("allow-private")
	}

	manager := browser.NewManager(cfg, log)
	dispatcher := command.NewDispatcher(cfg, manager, log)
	srv := server.New(cfg, dispatcher, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reclaims sessions idle past the configured timeout.
	manager.StartJanitor(ctx)

	err := srv.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := manager.Shutdown(shutdownCtx); serr != nil {
		log.Error("Session manager shutdown error.", zap.Error(serr))
		if err == nil {
			err = serr
		}
	}

	log.Info("agent-browser stopped.")
	return err
}
