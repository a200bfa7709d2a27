// Package main provides soltool, a command for inspecting SOL files.
//
//	soltool [flags] check FILE...   decode, re-encode and compare every file
//	soltool [flags] dump FILE...    print the decoded contents
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/DMA-Software/dma-golso/internal/batch"
	"github.com/DMA-Software/dma-golso/internal/config"
	"github.com/DMA-Software/dma-golso/pkg/sol"
)

// Flags holds the command line settings. Set flags override the config file.
type Flags struct {
	ConfigPath     string
	Workers        int
	TolerateLength bool
	RawExternals   bool
	Flex           bool
	Verbose        bool
}

func main() {
	flags := parseFlags()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(cfg.Level())

	// Set up signal handling so a long check can be interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Received shutdown signal, stopping")
		cancel()
	}()

	ok, err := run(ctx, flag.Arg(0), flag.Args()[1:], cfg, logger, os.Stdout)
	if err != nil {
		logger.Fatal(err)
	}
	if !ok {
		os.Exit(1)
	}
}

// parseFlags parses command line arguments
func parseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.ConfigPath, "config", "", "YAML config file")
	flag.IntVar(&flags.Workers, "workers", 0, "Files checked concurrently (default from config)")
	flag.BoolVar(&flags.TolerateLength, "tolerate-length", false, "Warn instead of failing on a bad length field")
	flag.BoolVar(&flags.RawExternals, "raw-externals", false, "Keep unknown externalizable objects as raw bytes")
	flag.BoolVar(&flags.Flex, "flex", false, "Decode Flex collection classes")
	flag.BoolVar(&flags.Verbose, "v", false, "Debug logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: soltool [flags] check|dump FILE...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	return flags
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(flags *Flags) (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(flags.ConfigPath); err != nil {
			return nil, err
		}
	}

	if flags.Workers > 0 {
		cfg.Workers = flags.Workers
	}
	cfg.TolerateLength = cfg.TolerateLength || flags.TolerateLength
	cfg.RawExternals = cfg.RawExternals || flags.RawExternals
	cfg.Flex = cfg.Flex || flags.Flex
	if flags.Verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	return cfg, cfg.Validate()
}

// run executes one subcommand. It reports false when any file failed.
func run(ctx context.Context, command string, files []string, cfg *config.Config, logger *logrus.Logger, out io.Writer) (bool, error) {
	switch command {
	case "check":
		return check(ctx, files, cfg, logger, out)
	case "dump":
		return dump(files, cfg, logger, out)
	default:
		return false, fmt.Errorf("unknown command %q", command)
	}
}

func check(ctx context.Context, files []string, cfg *config.Config, logger *logrus.Logger, out io.Writer) (bool, error) {
	jobs := make([]batch.Job, 0, len(files))
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", name, err)
		}
		jobs = append(jobs, batch.Job{Name: name, Data: data})
	}

	runner := batch.NewRunner(cfg.SOLOptions(logger), cfg.Workers, logger)
	logger.WithFields(logrus.Fields{"run": runner.ID(), "files": len(jobs)}).Info("Checking files")

	ok := true
	for _, res := range runner.Run(ctx, jobs) {
		switch {
		case res.Err != nil:
			ok = false
			fmt.Fprintf(out, "FAIL %s: %v\n", res.Name, res.Err)
		case !res.Canonical:
			fmt.Fprintf(out, "OK   %s (re-encoding differs)\n", res.Name)
		default:
			fmt.Fprintf(out, "OK   %s\n", res.Name)
		}
	}
	return ok, nil
}

func dump(files []string, cfg *config.Config, logger *logrus.Logger, out io.Writer) (bool, error) {
	ok := true
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", name, err)
		}

		r, err := sol.NewReader(data, cfg.SOLOptions(logger.WithField("file", name)))
		if err != nil {
			ok = false
			fmt.Fprintf(out, "FAIL %s: %v\n", name, err)
			continue
		}
		if err := dumpDocument(out, r); err != nil {
			ok = false
			fmt.Fprintf(out, "FAIL %s: %v\n", name, err)
		}
	}
	return ok, nil
}
