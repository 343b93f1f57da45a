package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadblacktech/datasets/pkg/config"
	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/export"
	"github.com/leadblacktech/datasets/pkg/hub"
	"github.com/leadblacktech/datasets/pkg/loader"
	"github.com/leadblacktech/datasets/pkg/logger"
	"github.com/leadblacktech/datasets/pkg/persist"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string
	var logLevel string

	root := &cobra.Command{
		Use:   "datasets",
		Short: "Datasets - columnar dataset transformation engine",
		Long: `Datasets manages columnar datasets on disk: inspect, convert, transform,
and exchange them with an S3-compatible content store.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{
				Level:    logLevel,
				Encoding: "console",
			})
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to engine configuration YAML file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Datasets v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "info <dir>",
		Short: "Show schema and row count of a saved dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := persist.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("rows:        %d\n", d.Len())
			fmt.Printf("fingerprint: %s\n", d.Fingerprint().String())
			fmt.Println("columns:")
			for _, f := range d.Schema().Fields() {
				fmt.Printf("  %-24s %s\n", f.Name, f.Feature)
			}
			return nil
		},
	})

	convertCmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert between dataset directories and row formats",
		Long: `Convert reads the input and writes the output, inferring both formats
from file extensions: .csv, .jsonl, .parquet, or a directory for the
native saved layout.

Example:
  datasets convert raw.csv out/
  datasets convert out/ export.parquet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args[0], args[1], configFile)
		},
	}
	root.AddCommand(convertCmd)

	var shuffleSeed int64
	shuffleCmd := &cobra.Command{
		Use:   "shuffle <dir> <out-dir>",
		Short: "Shuffle a saved dataset with a fixed seed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := persist.Load(args[0])
			if err != nil {
				return err
			}
			return persist.Save(d.Shuffle(shuffleSeed), args[1], persist.Options{})
		},
	}
	shuffleCmd.Flags().Int64Var(&shuffleSeed, "seed", 42, "Shuffle seed")
	root.AddCommand(shuffleCmd)

	var concatOut string
	concatCmd := &cobra.Command{
		Use:   "concat <dir>...",
		Short: "Concatenate saved datasets row-wise",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := make([]*dataset.Dataset, 0, len(args))
			for _, dir := range args {
				d, err := persist.Load(dir)
				if err != nil {
					return err
				}
				parts = append(parts, d)
			}
			merged, err := dataset.Concatenate(parts...)
			if err != nil {
				return err
			}
			return persist.Save(merged, concatOut, persist.Options{})
		},
	}
	concatCmd.Flags().StringVarP(&concatOut, "out", "o", "", "Output directory (required)")
	_ = concatCmd.MarkFlagRequired("out")
	root.AddCommand(concatCmd)

	var pushTimeout time.Duration
	pushCmd := &cobra.Command{
		Use:   "push <dir> <repo-id>",
		Short: "Upload a saved dataset to the content store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig(configFile)
			if err != nil {
				return err
			}
			client, err := hub.NewClient(cfg)
			if err != nil {
				return err
			}
			d, err := persist.Load(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			return client.Push(ctx, d, args[1])
		},
	}
	pushCmd.Flags().DurationVar(&pushTimeout, "timeout", 10*time.Minute, "Transfer timeout")
	root.AddCommand(pushCmd)

	var pullTimeout time.Duration
	var pullOut string
	pullCmd := &cobra.Command{
		Use:   "pull <repo-id>",
		Short: "Download a dataset from the content store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig(configFile)
			if err != nil {
				return err
			}
			client, err := hub.NewClient(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), pullTimeout)
			defer cancel()
			d, err := client.Pull(ctx, args[0])
			if err != nil {
				return err
			}
			if pullOut != "" {
				return persist.Save(d, pullOut, persist.Options{})
			}
			logger.Info("dataset cached", zap.Int("rows", d.Len()))
			return nil
		},
	}
	pullCmd.Flags().DurationVar(&pullTimeout, "timeout", 10*time.Minute, "Transfer timeout")
	pullCmd.Flags().StringVarP(&pullOut, "out", "o", "", "Also save the pulled dataset to this directory")
	root.AddCommand(pullCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// engineConfig loads the engine configuration, falling back to defaults
// when no file is given.
func engineConfig(path string) (*config.EngineConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// runConvert loads the input as a dataset and writes it in the output
// format, both inferred from the path extension.
func runConvert(in, out, configFile string) error {
	cfg, err := engineConfig(configFile)
	if err != nil {
		return err
	}

	d, err := readInput(in, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := writeOutput(d, out); err != nil {
		return err
	}
	logger.Info("conversion complete",
		zap.String("input", in),
		zap.String("output", out),
		zap.Int("rows", d.Len()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func readInput(in string, cfg *config.EngineConfig) (*dataset.Dataset, error) {
	switch strings.ToLower(filepath.Ext(in)) {
	case ".csv":
		f, err := os.Open(in) //nolint:gosec // user-supplied CLI path
		if err != nil {
			return nil, err
		}
		defer f.Close()
		storage, err := loader.FromCSV(f, nil)
		if err != nil {
			return nil, err
		}
		return dataset.FromStorageWithConfig(storage, cfg), nil
	case ".jsonl", ".json":
		f, err := os.Open(in) //nolint:gosec // user-supplied CLI path
		if err != nil {
			return nil, err
		}
		defer f.Close()
		storage, err := loader.FromJSONLines(f, nil)
		if err != nil {
			return nil, err
		}
		return dataset.FromStorageWithConfig(storage, cfg), nil
	default:
		return persist.Load(in)
	}
}

func writeOutput(d *dataset.Dataset, out string) error {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".csv":
		f, err := os.Create(out) //nolint:gosec // user-supplied CLI path
		if err != nil {
			return err
		}
		defer f.Close()
		return export.ToCSV(d, f)
	case ".jsonl", ".json":
		f, err := os.Create(out) //nolint:gosec // user-supplied CLI path
		if err != nil {
			return err
		}
		defer f.Close()
		return export.ToJSON(d, f)
	case ".parquet":
		f, err := os.Create(out) //nolint:gosec // user-supplied CLI path
		if err != nil {
			return err
		}
		defer f.Close()
		return export.ToParquet(d, f)
	default:
		return persist.Save(d, out, persist.Options{})
	}
}
