package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drstein77/productcatalog/internal/app"
	"github.com/drstein77/productcatalog/internal/config"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var option = config.NewOptions()

// rootCmd serves the web catalog when run without a subcommand
var rootCmd = &cobra.Command{
	Use:   "productcatalog",
	Short: "Browse the demo product catalog merged with locally edited products",
	Long: `productcatalog merges the public demo product catalog with products
created or edited locally.

Run without arguments to start the web server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

func init() {
	option.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Create a root context with the possibility of cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := app.NewServer(ctx, option)
	if err != nil {
		return err
	}

	// Create a channel for signal handling
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		// Wait for a signal
		sig := <-signalCh
		server.Log.Info(fmt.Sprintf("Received signal: %+v", sig))

		// Perform graceful server shutdown
		server.Shutdown(shutdownTimeout)

		// Cancel the context
		cancel()
	}()

	return server.Serve()
}
