package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"flashcore/blockdev"
	"flashcore/internal/logger"
	"flashcore/internal/stack"
)

func newBlockCmd(c *cli) *cobra.Command {
	var eraseMode string
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Filesystem block device operations",
		Long: `Access the flash through the filesystem block geometry. Block N lives at
physical address (N+block_offset)*block_size. Each operation prints the
block device status code: 0 OK, -5 IO, -22 INVAL.`,
	}
	cmd.PersistentFlags().StringVar(&eraseMode, "erase-mode", "", "Erase mode: raw|zero (overrides blockdev.erase_mode)")

	withDevice := func(fn func(dev *blockdev.Device) error) error {
		return c.withStack(func(s *stack.Stack) error {
			var override *blockdev.EraseMode
			if eraseMode != "" {
				m, err := blockdev.ParseEraseMode(eraseMode)
				if err != nil {
					return err
				}
				override = &m
			}
			dev, err := s.BlockDevice(override)
			if err != nil {
				return err
			}
			return fn(dev)
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show the block geometry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDevice(func(dev *blockdev.Device) error {
					bc := dev.Config()
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "block size:  %d\n", bc.BlockSize)
					fmt.Fprintf(out, "block count: %d\n", bc.BlockCount)
					fmt.Fprintf(out, "first block: %d (0x%08x)\n", bc.BlockOffset, dev.Addr(0, 0))
					fmt.Fprintf(out, "read/prog:   %d/%d\n", bc.ReadSize, bc.ProgSize)
					fmt.Fprintf(out, "cache:       %d\n", bc.CacheSize)
					fmt.Fprintf(out, "lookahead:   %d\n", bc.LookaheadSize)
					fmt.Fprintf(out, "cycles:      %d\n", bc.BlockCycles)
					fmt.Fprintf(out, "erase mode:  %s\n", bc.EraseMode)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "read BLOCK OFFSET LENGTH",
			Short: "Read bytes from a block",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				block, off, length, err := parseBlockArgs(args)
				if err != nil {
					return err
				}
				return withDevice(func(dev *blockdev.Device) error {
					buf := make([]byte, length)
					st := dev.ReadBlock(block, off, buf)
					if st == blockdev.StatusOK {
						dumpAt(cmd.OutOrStdout(), dev.Addr(block, off), buf)
					}
					return blockResult(cmd, "read", block, off, st)
				})
			},
		},
		&cobra.Command{
			Use:   "prog BLOCK OFFSET HEX",
			Short: "Program bytes into a block",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				block, err := parseUint32("block", args[0])
				if err != nil {
					return err
				}
				off, err := parseUint32("offset", args[1])
				if err != nil {
					return err
				}
				data, err := programData(args[2], "", "")
				if err != nil {
					return err
				}
				return withDevice(func(dev *blockdev.Device) error {
					return blockResult(cmd, "prog", block, off, dev.ProgramBlock(block, off, data))
				})
			},
		},
		&cobra.Command{
			Use:   "erase BLOCK",
			Short: "Erase one block",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				block, err := parseUint32("block", args[0])
				if err != nil {
					return err
				}
				return withDevice(func(dev *blockdev.Device) error {
					return blockResult(cmd, "erase", block, 0, dev.EraseBlock(block))
				})
			},
		},
	)
	return cmd
}

func parseBlockArgs(args []string) (block, off, length uint32, err error) {
	if block, err = parseUint32("block", args[0]); err != nil {
		return
	}
	if off, err = parseUint32("offset", args[1]); err != nil {
		return
	}
	length, err = parseUint32("length", args[2])
	return
}

func blockResult(cmd *cobra.Command, op string, block, off uint32, st blockdev.Status) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s block %d offset %d: %d (%s)\n", op, block, off, int(st), st)
	if st != blockdev.StatusOK {
		logger.Warn("block operation failed",
			logger.KeyOp, op,
			logger.KeyBlock, block,
			logger.KeyOffset, off,
			logger.KeyStatus, int(st))
	}
	return st.Err()
}
