package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/segheap/heap/alloc"
	"github.com/joshuapare/segheap/internal/format"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string
	maxHeap    = sizeFlag(format.DefaultMaxHeap)

	// stdout is swapped by tests.
	stdout io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Exercise and inspect segregated free-list heaps",
	Long: `heapctl drives a boundary-tag allocator with synthetic workloads and
inspects heap images persisted to disk. Every command verifies the heap's
structural invariants and reports the first violation it finds.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file with chunk_size, strict and max_heap")
	rootCmd.PersistentFlags().Var(&maxHeap, "max-heap", "Largest heap to create or open (e.g. 20MB)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// sizeFlag adapts datasize.ByteSize to pflag.Value.
type sizeFlag datasize.ByteSize

func (s *sizeFlag) String() string { return datasize.ByteSize(*s).HR() }

func (s *sizeFlag) Set(v string) error {
	var b datasize.ByteSize
	if err := b.UnmarshalText([]byte(v)); err != nil {
		return fmt.Errorf("invalid size %q: %w", v, err)
	}
	*s = sizeFlag(b)
	return nil
}

func (s *sizeFlag) Type() string { return "size" }

// fileConfig is the layout of the --config file.
type fileConfig struct {
	ChunkSize int               `yaml:"chunk_size"`
	Strict    bool              `yaml:"strict"`
	MaxHeap   datasize.ByteSize `yaml:"max_heap"`
}

// loadConfig merges the --config file (if any) over the defaults and returns
// the allocator config plus the heap cap in bytes. An explicit --max-heap
// flag wins over the file.
func loadConfig(cmd *cobra.Command) (*alloc.Config, int64, error) {
	cfg := alloc.DefaultConfig
	limit := int64(maxHeap)

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read config: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, 0, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
		if fc.ChunkSize != 0 {
			cfg.ChunkSize = fc.ChunkSize
		}
		cfg.Strict = fc.Strict
		if fc.MaxHeap != 0 && !cmd.Flags().Changed("max-heap") {
			limit = int64(fc.MaxHeap.Bytes())
		}
	}

	if verbose && !quiet {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return &cfg, limit, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
