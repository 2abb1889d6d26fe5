// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolves an address to \"lon lat\", using the cache when possible",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.logMetrics()

		address := strings.Join(args, " ")

		coord, err := a.evaluator.Locate(cmd.Context(), address)
		if err != nil {
			return err
		}

		if coord == nil {
			fmt.Printf("%s: not found\n", address)

			return nil
		}

		fmt.Printf("%s: %s\n", address, coord)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
