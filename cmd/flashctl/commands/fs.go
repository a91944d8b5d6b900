package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flashcore/fs/littlefs"
	"flashcore/internal/logger"
	"flashcore/internal/stack"
)

// withFS mounts the volume for fn and unmounts it afterwards. With
// autoFormat an unmountable volume is formatted first.
func (c *cli) withFS(cmd *cobra.Command, autoFormat bool, fn func(fsys *littlefs.FS) error) error {
	return c.withStack(func(s *stack.Stack) (err error) {
		fsys, err := s.FS()
		if err != nil {
			return err
		}
		if autoFormat {
			formatted, err := fsys.MountOrFormat()
			if err != nil {
				return err
			}
			if formatted {
				fmt.Fprintln(cmd.ErrOrStderr(), "no filesystem found, formatted")
			}
		} else if err := fsys.Mount(); err != nil {
			return fmt.Errorf("%w (run \"flashctl format\" first)", err)
		}
		defer func() {
			if uerr := fsys.Unmount(); err == nil {
				err = uerr
			}
		}()
		return fn(fsys)
	})
}

func newFormatCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "Write an empty LittleFS volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStack(func(s *stack.Stack) error {
				fsys, err := s.FS()
				if err != nil {
					return err
				}
				if err := fsys.Format(); err != nil {
					return err
				}
				logger.Info("formatted", logger.KeyPath, c.cfg.Flash.Path, "blocks", c.cfg.BlockDev.BlockCount)
				fmt.Fprintln(cmd.OutOrStdout(), "formatted")
				return nil
			})
		},
	}
}

func newLsCmd(c *cli) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return c.withFS(cmd, false, func(fsys *littlefs.FS) error {
				out := cmd.OutOrStdout()
				return fsys.ListDir(path, func(name string, info littlefs.Info) bool {
					switch {
					case long:
						fmt.Fprintf(out, "%s %8d %s\n", info.Type, info.Size, name)
					case info.Type == littlefs.TypeDir:
						fmt.Fprintf(out, "D: %s\n", name)
					default:
						fmt.Fprintf(out, "F: %s\n", name)
					}
					return true
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show type and size")
	return cmd
}

func newMkdirCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFS(cmd, false, func(fsys *littlefs.FS) error {
				return fsys.Mkdir(args[0])
			})
		},
	}
}

func newRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH",
		Short: "Remove a file or empty directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFS(cmd, false, func(fsys *littlefs.FS) error {
				return fsys.Remove(args[0])
			})
		},
	}
}

func newMvCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mv OLD NEW",
		Short: "Rename a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFS(cmd, false, func(fsys *littlefs.FS) error {
				return fsys.Rename(args[0], args[1])
			})
		},
	}
}

func newPutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "put HOSTFILE PATH",
		Short: "Copy a host file into the volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFS(cmd, true, func(fsys *littlefs.FS) error {
				n, err := stack.CopyIn(fsys, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", args[1], n)
				return nil
			})
		},
	}
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH HOSTFILE",
		Short: "Copy a file out of the volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFS(cmd, false, func(fsys *littlefs.FS) (err error) {
				out, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer func() {
					if cerr := out.Close(); err == nil {
						err = cerr
					}
				}()
				n, err := stack.CopyOut(fsys, args[0], out)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d bytes\n", args[1], n)
				return nil
			})
		},
	}
}

func newCatCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cat PATH",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFS(cmd, false, func(fsys *littlefs.FS) error {
				_, err := stack.CopyOut(fsys, args[0], cmd.OutOrStdout())
				return err
			})
		},
	}
}

func newAppendCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "append PATH LINE",
		Short: "Append a CRLF-terminated line to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFS(cmd, true, func(fsys *littlefs.FS) error {
				return fsys.AppendLine(args[0], args[1])
			})
		},
	}
}

func newImportCmd(c *cli) *cobra.Command {
	var format bool
	cmd := &cobra.Command{
		Use:   "import DIR",
		Short: "Copy a host directory tree into the volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format {
				if err := newFormatCmd(c).RunE(cmd, nil); err != nil {
					return err
				}
			}
			return c.withFS(cmd, true, func(fsys *littlefs.FS) error {
				stats, err := stack.ImportDir(fsys, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d directories, %d files, %d bytes\n",
					stats.Dirs, stats.Files, stats.Bytes)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&format, "format", false, "Format the volume first")
	return cmd
}
