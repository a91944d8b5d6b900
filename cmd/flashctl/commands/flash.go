package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"flashcore/flash"
	"flashcore/internal/logger"
	"flashcore/internal/stack"
)

func newInitEraseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init-erase ADDR LENGTH",
		Short: "Erase whole pages and leave them erased",
		Long: `Erase whole pages and leave them in the erased state. Reads of the range
fault until something is programmed. ADDR and LENGTH must be page aligned.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bulk(cmd, flash.OpInitErase, args, (*flash.Driver).InitErase)
		},
	}
}

func newEraseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "erase ADDR LENGTH",
		Short: "Zero-fill whole pages",
		Long: `Erase whole pages by programming them with zeros, so the range stays
readable and reads back as 0x00. ADDR and LENGTH must be page aligned.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bulk(cmd, flash.OpErase, args, (*flash.Driver).Erase)
		},
	}
}

func (c *cli) bulk(cmd *cobra.Command, op flash.Op, args []string, fn func(*flash.Driver, uint32, uint32) error) error {
	addr, err := parseUint32("address", args[0])
	if err != nil {
		return err
	}
	length, err := parseUint32("length", args[1])
	if err != nil {
		return err
	}
	return c.withStack(func(s *stack.Stack) error {
		err := fn(s.Driver, addr, length)
		report(cmd.OutOrStdout(), op, addr, length, err)
		return err
	})
}

func newProgramCmd(c *cli) *cobra.Command {
	var (
		hexData string
		text    string
		file    string
		page    bool
	)
	cmd := &cobra.Command{
		Use:   "program ADDR",
		Short: "Write bytes at any address",
		Long: `Write bytes at ADDR. Every page the write touches is read, merged and
reprogrammed; bytes outside the write are preserved.

With --page the data must be exactly one page and ADDR page aligned; the
page is programmed directly without merging.`,
		Example: `  flashctl program 0x1004 --hex 010203
  flashctl program 0x2000 --file boot.bin
  flashctl program 0 --string "hello"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint32("address", args[0])
			if err != nil {
				return err
			}
			data, err := programData(hexData, text, file)
			if err != nil {
				return err
			}
			return c.withStack(func(s *stack.Stack) error {
				op := flash.OpProgram
				if page {
					op = flash.OpProgramPage
					err = s.Driver.ProgramPage(addr, data)
				} else {
					err = s.Driver.Program(addr, data)
				}
				report(cmd.OutOrStdout(), op, addr, uint32(len(data)), err)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&hexData, "hex", "", "Data as hex digits")
	cmd.Flags().StringVar(&text, "string", "", "Data as a literal string")
	cmd.Flags().StringVar(&file, "file", "", "Data from a host file")
	cmd.Flags().BoolVar(&page, "page", false, "Program exactly one aligned page")
	cmd.MarkFlagsMutuallyExclusive("hex", "string", "file")
	cmd.MarkFlagsOneRequired("hex", "string", "file")
	return cmd
}

func programData(hexData, text, file string) ([]byte, error) {
	switch {
	case hexData != "":
		b, err := hex.DecodeString(strings.ReplaceAll(hexData, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid --hex: %w", err)
		}
		return b, nil
	case file != "":
		return os.ReadFile(file)
	default:
		return []byte(text), nil
	}
}

func newReadCmd(c *cli) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "read ADDR LENGTH",
		Short: "Read and hex-dump a range",
		Long: `Read LENGTH bytes at ADDR. An erased range is never touched: it is reported
as FAULT and dumps as 0xFF fill.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint32("address", args[0])
			if err != nil {
				return err
			}
			length, err := parseUint32("length", args[1])
			if err != nil {
				return err
			}
			return c.withStack(func(s *stack.Stack) error {
				buf := make([]byte, length)
				err := s.Driver.Read(addr, buf)
				if flash.ResultOf(err) == flash.ResultFailed {
					report(cmd.ErrOrStderr(), flash.OpRead, addr, length, err)
					return err
				}
				out := cmd.OutOrStdout()
				if raw {
					_, werr := out.Write(buf)
					return werr
				}
				dumpAt(out, addr, buf)
				report(out, flash.OpRead, addr, length, err)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Write the bytes instead of a hex dump")
	return cmd
}

func newStatusCmd(c *cli) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "status [ADDR LENGTH]",
		Short: "Show geometry, accessibility and wear",
		Long: `Show the flash geometry and access policy. With ADDR and LENGTH, report
whether the range is accessible or erased. With --pages, list every page
with its erase state and erase count.`,
		Args: cobra.MatchAll(cobra.RangeArgs(0, 2), func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return errors.New("status takes both ADDR and LENGTH or neither")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStack(func(s *stack.Stack) error {
				out := cmd.OutOrStdout()
				d := s.Driver
				pages := d.Size() / d.PageSize()

				erased, maxWear := 0, uint32(0)
				for p := uint32(0); p < pages; p++ {
					addr := p * d.PageSize()
					if s.Sim.PageErased(addr) {
						erased++
					}
					maxWear = max(maxWear, s.Sim.EraseCount(addr))
				}
				fmt.Fprintf(out, "backend:  %s %s\n", c.cfg.Flash.Backend, c.cfg.Flash.Path)
				fmt.Fprintf(out, "size:     %d bytes (%d pages of %d)\n", d.Size(), pages, d.PageSize())
				fmt.Fprintf(out, "policy:   %s\n", d.Policy())
				fmt.Fprintf(out, "erased:   %d/%d pages\n", erased, pages)
				fmt.Fprintf(out, "max wear: %d erase cycles this session\n", maxWear)

				if len(args) == 2 {
					addr, err := parseUint32("address", args[0])
					if err != nil {
						return err
					}
					length, err := parseUint32("length", args[1])
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "range 0x%08x+%d: accessible=%t erased=%t\n",
						addr, length, d.IsAccessible(addr, length), d.IsErased(addr, length))
				}

				if all {
					fmt.Fprintln(out, "PAGE  ADDRESS     STATE       WEAR")
					for p := uint32(0); p < pages; p++ {
						addr := p * d.PageSize()
						state := "programmed"
						if s.Sim.PageErased(addr) {
							state = "erased"
						}
						fmt.Fprintf(out, "%-5d 0x%08x  %-10s  %d\n", p, addr, state, s.Sim.EraseCount(addr))
					}
				}
				logger.Debug("status", logger.KeyPath, c.cfg.Flash.Path, "erased_pages", erased)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "pages", false, "List every page")
	return cmd
}

// dumpAt is hex.Dump with absolute addresses.
func dumpAt(w io.Writer, base uint32, b []byte) {
	for off := 0; off < len(b); off += 16 {
		line := b[off:min(off+16, len(b))]
		fmt.Fprintf(w, "%08x  % x", base+uint32(off), line)
		fmt.Fprintf(w, "%*s |", 3*(16-len(line))+1, "")
		for _, c := range line {
			if c < 0x20 || c > 0x7e {
				c = '.'
			}
			fmt.Fprintf(w, "%c", c)
		}
		fmt.Fprintln(w, "|")
	}
}
