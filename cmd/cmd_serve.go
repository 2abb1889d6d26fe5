// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/starburger/foodcart/api"
	"github.com/starburger/foodcart/foodcart"
)

var serveOptions struct {
	Addr     string
	SeedFile string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the restaurant selection API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := gracefulContext(cmd.Context())
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.logMetrics()

		if serveOptions.SeedFile != "" {
			seeded, counts, err := foodcart.SeedIfEmpty(ctx, a.repo, serveOptions.SeedFile)
			if err != nil {
				return err
			}

			if seeded {
				log.Printf("seeded empty database: %s", counts)
			}
		}

		return api.NewServer(a.repo, a.dispatcher, a.evaluator).Run(ctx, serveOptions.Addr)
	},
}

// gracefulContext is canceled on SIGINT or SIGTERM.
func gracefulContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Println("Received termination signal, starting graceful shutdown...")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOptions.Addr, "addr", "localhost:8080", "Address to listen on")
	serveCmd.Flags().StringVar(
		&serveOptions.SeedFile,
		"seed",
		"",
		"JSON file to seed the database with when it has no restaurants",
	)
}
