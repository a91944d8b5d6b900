//go:build !tinygo

// Command mkflash builds a flash image holding a LittleFS volume populated
// from a host directory.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flashcore/internal/config"
	"flashcore/internal/logger"
	"flashcore/internal/stack"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.GetDefaultConfig()
	var (
		srcDir  string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "mkflash --src DIR [--out IMAGE]",
		Short: "Build a flash image with a LittleFS volume from a directory",
		Long: `mkflash creates a factory-fresh flash image, formats a LittleFS volume in
the configured block range and copies DIR into it. An existing image at
--out is replaced.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel("DEBUG")
			}
			cfg.Flash.Backend = "file"
			if err := config.Validate(cfg); err != nil {
				return err
			}
			stats, err := build(cfg, srcDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d directories, %d files, %d bytes\n",
				cfg.Flash.Path, stats.Dirs, stats.Files, stats.Bytes)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&srcDir, "src", "", "Source directory to import")
	f.StringVar(&cfg.Flash.Path, "out", config.DefaultFlashPath, "Output flash image path")
	f.Uint32Var(&cfg.Flash.Size, "size", cfg.Flash.Size, "Flash size in bytes")
	f.Uint32Var(&cfg.Flash.PageSize, "page", cfg.Flash.PageSize, "Flash page size in bytes")
	f.Uint32Var(&cfg.BlockDev.BlockSize, "block-size", cfg.BlockDev.BlockSize, "Filesystem block size")
	f.Uint32Var(&cfg.BlockDev.BlockCount, "block-count", cfg.BlockDev.BlockCount, "Filesystem block count")
	f.Uint32Var(&cfg.BlockDev.BlockOffset, "block-offset", cfg.BlockDev.BlockOffset, "First filesystem block")
	f.BoolVarP(&verbose, "verbose", "v", false, "Log every imported file")
	_ = cmd.MarkFlagRequired("src")
	return cmd
}

func build(cfg *config.Config, srcDir string) (stack.ImportStats, error) {
	for _, p := range []string{cfg.Flash.Path, cfg.Flash.Path + ".state"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return stack.ImportStats{}, fmt.Errorf("remove old image: %w", err)
		}
	}

	s, err := stack.Open(cfg, nil)
	if err != nil {
		return stack.ImportStats{}, err
	}
	stats, err := populate(s, srcDir)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return stats, err
}

func populate(s *stack.Stack, srcDir string) (stack.ImportStats, error) {
	fsys, err := s.FS()
	if err != nil {
		return stack.ImportStats{}, err
	}
	if err := fsys.Format(); err != nil {
		return stack.ImportStats{}, err
	}
	if err := fsys.Mount(); err != nil {
		return stack.ImportStats{}, err
	}
	stats, err := stack.ImportDir(fsys, srcDir)
	if uerr := fsys.Unmount(); err == nil {
		err = uerr
	}
	return stats, err
}
