// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pilot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the research pipeline as an HTTP service",
	Long: `Serve exposes the pipeline over HTTP: query submission, record lookup,
an SSE live feed, history, and the source catalog. Research runs in the
background, decoupled from the submitting request; shutdown waits for
in-flight runs to reach a terminal state.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		p.cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(p.store, p.queue, p.publisher, p.dispatcher, p.cfg.Server, p.logger)
	return srv.ListenAndServe(ctx)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config, default :8000)")

	rootCmd.AddCommand(serveCmd)
}
