// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/starburger/foodcart/foodcart"
)

var seedReset bool

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Loads restaurants, products, menus and orders from a JSON file",
	Long: `
Loads foodcart/testdata/seed.json unless another file is given. With --reset
the database is removed first.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "foodcart/testdata/seed.json"
		if len(args) == 1 {
			path = args[0]
		}

		if seedReset {
			_ = os.Remove(dbFile())
			_ = os.Remove(dbFile() + ".wal")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		counts, err := foodcart.ImportFromJSON(cmd.Context(), a.repo, path)
		if err != nil {
			return err
		}

		fmt.Printf("seeded %s from %s\n", counts, path)

		return nil
	},
}

var seedExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Writes the database content in the seed format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := foodcart.ExportToJSON(cmd.Context(), a.repo, args[0]); err != nil {
			return err
		}

		fmt.Printf("exported database to %s\n", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedExportCmd)
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "Remove the database before seeding")
}
