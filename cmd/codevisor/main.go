// Command codevisor analyzes code snippets into flowcharts and execution
// traces. It can run the analysis HTTP service, an MCP server, or a one-shot
// analysis from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dotcommander/codevisor/internal/config"
)

var version = "0.1.0"

const usage = `Usage: codevisor <command> [flags]

Commands:
  serve     run the analysis HTTP service
  analyze   analyze one snippet and print the result
  exports   list finished exports
  mcp       run an MCP server on stdio
  init      write a default config file
  version   print the version

Run "codevisor <command> -h" for command flags.
`

// errUsage is returned after usage has already been printed.
var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "codevisor: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cmd := &command{stdin: stdin, stdout: stdout, stderr: stderr}
	switch args[0] {
	case "serve":
		return cmd.serve(ctx, args[1:])
	case "analyze":
		return cmd.analyze(ctx, args[1:])
	case "exports":
		return cmd.exports(ctx, args[1:])
	case "mcp":
		return cmd.mcp(ctx, args[1:])
	case "init":
		return cmd.initConfig(args[1:])
	case "version":
		fmt.Fprintln(stdout, version)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
	return errUsage
}

// command carries the process streams shared by every subcommand.
type command struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *command) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("codevisor "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// setup loads the config and installs the default logger. verbose forces
// debug logging.
func (c *command) setup(configPath string, verbose bool) (*config.Config, *slog.Logger, error) {
	if configPath == "" {
		configPath = config.Path()
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := parseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
