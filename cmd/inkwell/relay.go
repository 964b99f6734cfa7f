package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/inkwell/pkg/adapters/ws"
)

var relayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the websocket relay used by the ws sync backend",
	Long: `Relay forwards every frame received on /channels/{name} to the other
peers connected to the same channel. It keeps no state.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := ws.NewServer(ws.ServerConfig{Addr: relayAddr, Logger: slog.Default()})
		if err := server.ListenAndServe(ctx); err != nil {
			fatal("Relay failed", err)
		}
		slog.Info("relay stopped")
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayAddr, "addr", "localhost:8787", "Address to listen on")
	rootCmd.AddCommand(relayCmd)
}
