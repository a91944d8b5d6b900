// Package commands implements the flashctl command tree.
package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"flashcore/flash"
	"flashcore/internal/config"
	"flashcore/internal/logger"
	"flashcore/internal/stack"
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	configPath string
	flashPath  string
	backend    string
	policy     string
	logLevel   string

	cfg *config.Config
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "flashctl",
		Short: "Inspect and modify flash images",
		Long: `flashctl drives the flash stack against a host flash image: raw page
programming and erasing, accessibility checks, filesystem block access and
the LittleFS volume stored on top.

Configuration is read from $XDG_CONFIG_HOME/flashcore/config.yaml (or
--config) and FLASHCORE_* environment variables; flags override both.

Use "flashctl [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/flashcore/config.yaml)")
	pf.StringVarP(&c.flashPath, "flash", "f", "", "Flash image path (overrides flash.path)")
	pf.StringVar(&c.backend, "backend", "", "Flash backend: file|mem (overrides flash.backend)")
	pf.StringVar(&c.policy, "policy", "", "Access policy: assume-accessible|assume-erased (overrides flash.access_policy)")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level: DEBUG|INFO|WARN|ERROR (overrides logging.level)")

	root.AddCommand(
		newInitEraseCmd(c),
		newEraseCmd(c),
		newProgramCmd(c),
		newReadCmd(c),
		newStatusCmd(c),
		newBlockCmd(c),
		newFormatCmd(c),
		newLsCmd(c),
		newMkdirCmd(c),
		newRmCmd(c),
		newMvCmd(c),
		newPutCmd(c),
		newGetCmd(c),
		newCatCmd(c),
		newAppendCmd(c),
		newImportCmd(c),
		newSoakCmd(c),
		newConfigCmd(c),
		newVersionCmd(),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// Execute runs flashctl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Flash.Backend = c.backend
	}
	if flags.Changed("flash") {
		cfg.Flash.Path = c.flashPath
	}
	if flags.Changed("policy") {
		cfg.Flash.AccessPolicy = c.policy
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// open opens the configured flash. The caller must Close the stack.
func (c *cli) open(m flash.Metrics) (*stack.Stack, error) {
	return stack.Open(c.cfg, m)
}

// withStack runs fn on an opened stack and closes it, keeping fn's error
// over a close error.
func (c *cli) withStack(fn func(s *stack.Stack) error) (err error) {
	s, err := c.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func parseUint32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected a decimal or 0x-prefixed number", name, s)
	}
	return uint32(v), nil
}

// report prints the coarse result of a flash operation and logs the detail.
func report(w io.Writer, op flash.Op, addr, length uint32, err error) {
	res := flash.ResultOf(err)
	fmt.Fprintf(w, "%s 0x%08x+%d: %s\n", op, addr, length, res)
	if err != nil {
		logger.Warn("flash operation did not complete",
			logger.KeyOp, string(op),
			logger.Addr(addr),
			logger.KeyLength, length,
			logger.KeyResult, res.String(),
			logger.Err(err))
	}
}
