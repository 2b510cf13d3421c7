package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/librescoot/maptool/internal/config"
	"github.com/librescoot/maptool/internal/logging"
	"github.com/librescoot/maptool/internal/mbtiles"
	"github.com/librescoot/maptool/internal/profile"
	"github.com/librescoot/maptool/internal/progress"
	"github.com/librescoot/maptool/internal/worker"
)

func newProcessCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		profileRef string
		dbPath     string
		workers    int
		configPath string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Filter an MBTiles archive according to a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := profile.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening profile store: %w", err)
			}
			defer store.Close()

			if err := store.EnsureValidDefault(); err != nil {
				return fmt.Errorf("ensuring default profile: %w", err)
			}

			p, err := resolveProfile(store, profileRef)
			if err != nil {
				return err
			}

			workerCount := cfg.ResolvedWorkers()
			if workers > 0 {
				workerCount = workers
			}

			pool := worker.New(workerCount, log)
			driver := mbtiles.New(cfg.BatchSize, pool, log)

			var sink progress.Sink = progress.Noop{}
			if !quiet {
				sink = progress.NewBar(os.Stderr, "Processing")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("maptool %s (commit %s)\n", version, commit)
			fmt.Printf("  %-12s %s\n", "Profile:", p.Name)
			fmt.Printf("  %-12s %d layer(s)\n", "Keep-set:", len(p.LayersToKeep))
			fmt.Printf("  %-12s %d\n", "Workers:", workerCount)
			fmt.Printf("  %-12s %s\n", "Input:", inputPath)
			fmt.Printf("  %-12s %s\n", "Output:", outputPath)

			start := time.Now()
			summary, err := driver.Process(ctx, inputPath, outputPath, p.LayersToKeep, sink)
			if err != nil {
				return fmt.Errorf("processing: %w", err)
			}

			fi, statErr := os.Stat(outputPath)
			var sizeStr string
			if statErr == nil {
				sizeStr = humanize.Bytes(uint64(fi.Size()))
			}

			fmt.Printf("Done: processed=%d modified=%d decode_failures=%d, %s, %v -> %s\n",
				summary.Processed, summary.Modified, summary.DecodeFailures,
				sizeStr, time.Since(start).Round(time.Millisecond), outputPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Path to the source MBTiles archive (required)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Path to write the filtered MBTiles archive (required)")
	cmd.Flags().StringVar(&profileRef, "profile", "", "Profile id or name to apply (default: the store's default profile)")
	cmd.Flags().StringVar(&dbPath, "db", "profiles.db", "Path to the profile store")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count (0 = config/CPU default)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to an optional YAML config file")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress the progress bar")

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

// resolveProfile looks up profileRef by id first, then by name, falling
// back to the store's default when ref is empty.
func resolveProfile(store *profile.Store, ref string) (profile.Profile, error) {
	if ref == "" {
		return store.GetDefault()
	}

	if p, err := store.Get(ref); err == nil {
		return p, nil
	}

	all, err := store.List()
	if err != nil {
		return profile.Profile{}, err
	}
	for _, p := range all {
		if p.Name == ref {
			return p, nil
		}
	}
	return profile.Profile{}, fmt.Errorf("profile %q: %w", ref, profile.ErrNotFound)
}
