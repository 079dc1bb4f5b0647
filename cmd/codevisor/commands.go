package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotcommander/codevisor/internal/agent"
	"github.com/dotcommander/codevisor/internal/analyzer"
	"github.com/dotcommander/codevisor/internal/config"
	"github.com/dotcommander/codevisor/internal/core"
	"github.com/dotcommander/codevisor/internal/domain"
	"github.com/dotcommander/codevisor/internal/events"
	"github.com/dotcommander/codevisor/internal/export"
	"github.com/dotcommander/codevisor/internal/mcptools"
	"github.com/dotcommander/codevisor/internal/server"
	"github.com/dotcommander/codevisor/internal/storage"
)

func (c *command) serve(ctx context.Context, args []string) error {
	fs := c.flags("serve")
	configPath := fs.String("config", "", "config file path")
	addr := fs.String("addr", "", "listen address (overrides config)")
	cacheDir := fs.String("cache", "", "result cache directory (overrides config)")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := c.setup(*configPath, *verbose)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *cacheDir != "" {
		cfg.Server.CacheDir = *cacheDir
	}

	var options []server.Option
	options = append(options, server.WithLogger(logger))
	if cfg.Server.CacheDir != "" {
		cache, err := server.OpenPebbleCache(cfg.Server.CacheDir)
		if err != nil {
			return err
		}
		options = append(options, server.WithCache(cache))
	}

	srv := server.New(analyzer.New(analyzer.WithLogger(logger)), server.Options{
		Addr:          cfg.Server.Addr,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		MaxCodeSize:   cfg.Limits.MaxCodeSize,
		ReadTimeout:   cfg.Limits.RequestTimeout,
		ShutdownGrace: cfg.Limits.ShutdownGrace,
	}, options...)
	return srv.ListenAndServe(ctx)
}

func (c *command) analyze(ctx context.Context, args []string) error {
	fs := c.flags("analyze")
	configPath := fs.String("config", "", "config file path")
	lang := fs.String("lang", "python", "language: python, cpp or java")
	file := fs.String("file", "-", `source file, or "-" for stdin`)
	play := fs.Bool("play", false, "step through the execution trace")
	exportDir := fs.String("export", "", "write flowchart, steps and manifest under this directory")
	copyMemory := fs.Bool("copy", false, "copy memory suggestions to the clipboard")
	local := fs.Bool("local", false, "analyze in-process instead of calling the service")
	narrate := fs.String("narrate", "auto", `where -play narrates steps: "print", "log" or "auto" (print on a terminal)`)
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 && *file == "-" {
		*file = fs.Arg(0)
	}

	cfg, logger, err := c.setup(*configPath, *verbose)
	if err != nil {
		return err
	}
	language, ok := domain.ParseLanguage(*lang)
	if !ok {
		return &domain.ValidationError{Field: "language", Message: "must be one of python, cpp, java", Value: *lang}
	}
	code, err := c.readSource(*file)
	if err != nil {
		return err
	}
	narrator, err := c.narrator(*narrate, logger)
	if err != nil {
		return err
	}

	var service agent.Service
	if *local {
		service = agent.NewLocalClient(analyzer.New(analyzer.WithLogger(logger)))
	} else {
		service = agent.NewClient(cfg.Service.BaseURL,
			agent.WithTimeout(cfg.Service.Timeout),
			agent.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
			agent.WithLogger(logger))
	}

	bus := events.NewBus(logger)
	policy := core.PreserveOnFailure
	if cfg.Playback.ClearOnSubmit {
		policy = core.ClearBeforeCall
	}
	session := core.NewSession(service,
		core.WithTimeout(cfg.Service.Timeout),
		core.WithTickInterval(cfg.Playback.TickInterval),
		core.WithClearPolicy(policy),
		core.WithEventBus(bus),
		core.WithHighlighter(export.NewDOMHighlighter(func(nodeID string) {
			if nodeID != "" {
				logger.Debug("highlight", "node_id", nodeID)
			}
		})),
		core.WithNarrator(narrator),
		core.WithLogger(logger))

	result, err := session.Submit(ctx, code, language)
	if err != nil {
		fmt.Fprintln(c.stderr, domain.UserMessage(err))
		return err
	}
	c.printResult(result)

	if *play {
		if err := playAll(ctx, session, bus); err != nil {
			return err
		}
	}
	if *exportDir != "" {
		exporter := export.NewStorageExporter(storage.NewFileSystem(*exportDir),
			export.WithNaming(storage.ParseNamingStrategy(cfg.Export.Naming)))
		dir, err := exporter.Export(ctx, language, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Exported to %s\n", filepath.Join(*exportDir, dir))
	}
	if *copyMemory {
		text := export.FormatMemorySuggestions(result.MemoryAnalysis)
		if text == "" {
			fmt.Fprintln(c.stdout, "No memory suggestions to copy.")
			return nil
		}
		if err := export.NewSystemClipboard().Copy(ctx, text); err != nil {
			if !errors.Is(err, export.ErrNoClipboard) {
				return err
			}
			logger.Warn("no clipboard available, printing instead")
			return export.NewWriterClipboard(c.stdout).Copy(ctx, text)
		}
		fmt.Fprintln(c.stdout, "Memory suggestions copied to clipboard.")
	}
	return nil
}

// narrator picks the step narrator. In auto mode a redirected stdout gets the
// structured log instead of spoken lines.
func (c *command) narrator(mode string, logger *slog.Logger) (core.Narrator, error) {
	switch mode {
	case "print":
		return export.NewWriterNarrator(c.stdout, "  > "), nil
	case "log":
		return export.NewLogNarrator(logger), nil
	case "auto":
		if f, ok := c.stdout.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice == 0 {
				return export.NewLogNarrator(logger), nil
			}
		}
		return export.NewWriterNarrator(c.stdout, "  > "), nil
	}
	return nil, fmt.Errorf("unknown -narrate mode %q", mode)
}

// playAll autoplays the trace and blocks until the last step or ctx ends.
func playAll(ctx context.Context, session *core.Session, bus *events.Bus) error {
	done := make(chan struct{}, 1)
	id, err := bus.Subscribe("^"+strings.ReplaceAll(events.PlaybackFinished, ".", `\.`)+"$",
		func(context.Context, events.Event) error {
			select {
			case done <- struct{}{}:
			default:
			}
			return nil
		})
	if err != nil {
		return err
	}
	defer func() { _ = bus.Unsubscribe(id) }()

	if err := session.Play(); err != nil {
		if errors.Is(err, core.ErrNothingToPlay) {
			return nil
		}
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		session.Pause()
		return ctx.Err()
	}
}

func (c *command) readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

func (c *command) printResult(result *domain.AnalysisResult) {
	w := c.stdout
	fmt.Fprintf(w, "Flowchart: %d bytes of SVG\n\n", len(result.Flowchart))

	fmt.Fprintln(w, "Execution steps:")
	fmt.Fprint(w, export.FormatSteps(result.ExecutionSteps))

	fmt.Fprintf(w, "\nTime complexity:  %s\n", result.ComplexityAnalysis.TimeComplexity)
	fmt.Fprintf(w, "Space complexity: %s\n", result.ComplexityAnalysis.SpaceComplexity)
	printList(w, "Complexity details", result.ComplexityAnalysis.Details)

	printList(w, "Optimization suggestions", result.OptimizationSuggestions.Suggestions)
	if code := result.OptimizationSuggestions.OptimizedCode; code != "" {
		fmt.Fprintf(w, "Optimized code:\n%s\n", code)
	}

	mem := result.MemoryAnalysis
	fmt.Fprintf(w, "\nEstimated memory: %s\n", mem.EstimatedMemoryUsage)
	bottlenecks := make([]string, 0, len(mem.Bottlenecks))
	for _, b := range mem.Bottlenecks {
		bottlenecks = append(bottlenecks, fmt.Sprintf("Line %d: %s", b.Line, b.Description))
	}
	printList(w, "Memory bottlenecks", bottlenecks)
	if text := export.FormatMemorySuggestions(result.MemoryAnalysis); text != "" {
		fmt.Fprintf(w, "Memory suggestions:\n%s\n", text)
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func (c *command) mcp(ctx context.Context, args []string) error {
	fs := c.flags("mcp")
	configPath := fs.String("config", "", "config file path")
	remote := fs.Bool("remote", false, "forward tool calls to the configured analysis service")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// stdout carries the protocol, so logs only go to stderr.
	cfg, logger, err := c.setup(*configPath, false)
	if err != nil {
		return err
	}

	var service agent.Service = agent.NewLocalClient(analyzer.New(analyzer.WithLogger(logger)))
	if *remote {
		service = agent.NewClient(cfg.Service.BaseURL,
			agent.WithTimeout(cfg.Service.Timeout),
			agent.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
			agent.WithLogger(logger))
	}

	logger.Info("starting MCP server on stdio", "remote", *remote)
	errc := make(chan error, 1)
	go func() { errc <- mcptools.Serve(mcptools.NewServer(service, version, logger)) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (c *command) exports(ctx context.Context, args []string) error {
	fs := c.flags("exports")
	configPath := fs.String("config", "", "config file path")
	dir := fs.String("dir", "", "export root (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := c.setup(*configPath, false)
	if err != nil {
		return err
	}
	if *dir == "" {
		*dir = cfg.Export.Dir
	}

	dirs, err := export.NewStorageExporter(storage.NewFileSystem(*dir)).Exports(ctx)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		fmt.Fprintf(c.stdout, "No exports under %s\n", *dir)
		return nil
	}
	for _, d := range dirs {
		fmt.Fprintln(c.stdout, filepath.Join(*dir, filepath.FromSlash(d)))
	}
	return nil
}

func (c *command) initConfig(args []string) error {
	fs := c.flags("init")
	path := fs.String("config", config.Path(), "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("config file %s already exists (use -force to overwrite)", *path)
	}
	if err := config.Default().Save(*path); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Wrote %s\n", *path)
	slog.Debug("config written", "path", *path)
	return nil
}
