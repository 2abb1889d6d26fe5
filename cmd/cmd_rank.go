// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/starburger/foodcart/dispatch"
	"github.com/starburger/foodcart/foodcart"
)

var rankStatuses []string

func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}

	return id, nil
}

var rankCmd = &cobra.Command{
	Use:   "rank [order]",
	Short: "Lists the restaurants able to prepare an order, nearest first",
	Long: `
Without arguments every order is ranked, optionally filtered with --status.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.logMetrics()

		if len(args) == 1 {
			orderID, err := parseID("order", args[0])
			if err != nil {
				return err
			}

			assignment, err := a.dispatcher.ResolveAndRank(ctx, orderID)
			if err != nil {
				return err
			}

			printAssignment(assignment)

			return nil
		}

		statuses := make([]foodcart.OrderStatus, 0, len(rankStatuses))
		for _, s := range rankStatuses {
			status := foodcart.OrderStatus(strings.ToUpper(s))
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", s)
			}

			statuses = append(statuses, status)
		}

		assignments, err := a.dispatcher.ResolveAndRankAll(ctx, statuses...)
		if err != nil {
			return err
		}

		for _, assignment := range assignments {
			printAssignment(assignment)
		}

		return nil
	},
}

func printAssignment(a *dispatch.Assignment) {
	if len(a.Restaurants) == 0 {
		fmt.Printf("Order %d: no restaurant can prepare it\n", a.OrderID)

		return
	}

	line := strings.Repeat("─", 40)
	fmt.Printf("Order %d:\n", a.OrderID)
	fmt.Printf("╭─%4s─┬─%-40s─┬─%10s─╮\n", "────", line, "──────────")
	fmt.Printf("│ %4s │ %-40s │ %10s │\n", "Id", "Restaurant", "Distance")
	fmt.Printf("├─%4s─┼─%-40s─┼─%10s─┤\n", "────", line, "──────────")

	for _, c := range a.Restaurants {
		fmt.Printf("│ %4d │ %-40s │ %10s │\n", c.Restaurant.ID, c.Restaurant.Name, c.Distance)
	}

	fmt.Printf("╰─%4s─┴─%-40s─┴─%10s─╯\n", "────", line, "──────────")

	for _, f := range a.Failures {
		fmt.Printf("  restaurant %d: %s\n", f.RestaurantID, f.Error)
	}
}

var eligibleCmd = &cobra.Command{
	Use:   "eligible <order> <restaurant>",
	Short: "Tells whether a restaurant can prepare every product of an order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, err := parseID("order", args[0])
		if err != nil {
			return err
		}

		restaurantID, err := parseID("restaurant", args[1])
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.dispatcher.IsEligible(cmd.Context(), orderID, restaurantID)
		if err != nil {
			return err
		}

		if ok {
			fmt.Printf("restaurant %d can prepare order %d\n", restaurantID, orderID)
		} else {
			fmt.Printf("restaurant %d cannot prepare order %d\n", restaurantID, orderID)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(eligibleCmd)
	rankCmd.Flags().StringSliceVar(&rankStatuses, "status", nil, "Only rank orders with these statuses (N, A, D, F, C)")
}
