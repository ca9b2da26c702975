package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "micbridge",
	Short: "Native microphone bridge for embedded web content",
	Long: `micbridge records audio on behalf of embedded web content.

The content posts START_RECORD and STOP_RECORD messages over the bridge
and receives RECORDING_COMPLETED with a file URI once a recording is
finalized. Settings come from MICBRIDGE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, permissionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
