// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/starburger/foodcart/geocoding"
	"github.com/starburger/foodcart/ranking"
	"github.com/starburger/foodcart/spatial"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manages the geocode cache",
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Geocodes every restaurant and order address missing from the cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := gracefulContext(cmd.Context())
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.logMetrics()

		addresses, err := knownAddresses(ctx, a)
		if err != nil {
			return err
		}

		stats, err := warm(ctx, a.evaluator, addresses, rootOptions.MaxProcs)
		log.Printf("warmed %d addresses, %d failed, %d skipped", stats.Located, stats.Failed, stats.Skipped)

		if err != nil {
			return err
		}

		return ctx.Err()
	},
}

// knownAddresses returns the distinct normalized addresses of restaurants
// and orders.
func knownAddresses(ctx context.Context, a *app) ([]string, error) {
	restaurants, err := a.repo.ListRestaurants(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := a.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[geocoding.Address]struct{})
	addresses := make([]string, 0, len(restaurants)+len(orders))

	add := func(raw string) {
		normalized := geocoding.NormalizeAddress(raw)
		if normalized.IsEmpty() {
			return
		}

		if _, ok := seen[normalized]; ok {
			return
		}

		seen[normalized] = struct{}{}
		addresses = append(addresses, raw)
	}

	for _, r := range restaurants {
		add(r.Address)
	}

	for _, o := range orders {
		add(o.Address)
	}

	return addresses, nil
}

type locator interface {
	Locate(ctx context.Context, address string) (*spatial.Coordinate, error)
}

type warmStats struct {
	Located int
	Failed  int
	Skipped int
}

// warm locates every address with at most maxProcs requests in flight. It
// stops early when the provider quota is exhausted, since every remaining
// request would fail the same way, and returns that error.
func warm(ctx context.Context, loc locator, addresses []string, maxProcs int) (warmStats, error) {
	if maxProcs <= 0 {
		maxProcs = ranking.DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(addresses),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		stats    warmStats
		quotaErr error
	)

	semaphore := make(chan struct{}, maxProcs)

	for i, address := range addresses {
		semaphore <- struct{}{}

		if ctx.Err() != nil {
			<-semaphore

			mu.Lock()
			stats.Skipped += len(addresses) - i
			mu.Unlock()

			break
		}

		wg.Add(1)

		go func(address string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			_, err := loc.Locate(ctx, address)

			mu.Lock()
			switch {
			case err == nil:
				stats.Located++
			case geocoding.IsQuotaExceededError(err):
				stats.Failed++

				if quotaErr == nil {
					quotaErr = fmt.Errorf("stopping, geocoding quota exhausted: %w", err)
					cancel()
				}
			default:
				stats.Failed++
				log.Printf("%s: %v", address, err)
			}
			mu.Unlock()

			if bar != nil {
				_ = bar.Add(1)
			}
		}(address)
	}

	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	return stats, quotaErr
}

var cacheExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Writes the geocode cache to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := geocoding.ExportToJSON(cmd.Context(), a.cache, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("exported %d addresses to %s\n", n, args[0])

		return nil
	},
}

var cacheImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Loads geocoded addresses from a JSON file into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := geocoding.ImportFromJSON(cmd.Context(), a.cache, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("imported %d addresses from %s\n", n, args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheWarmCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheImportCmd)
}
