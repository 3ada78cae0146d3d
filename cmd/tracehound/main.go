package main

import (
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tracehound/tracehound/pkg/config"
	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/paths"
	"github.com/tracehound/tracehound/pkg/report"
	"github.com/tracehound/tracehound/pkg/trace"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	args, err := extractGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if handled, exitCode := dispatchSubcommand(args); handled {
		os.Exit(exitCode)
	}

	fmt.Fprintln(os.Stderr, "Error: no command given")
	fmt.Fprintln(os.Stderr, "Run 'tracehound --help' for usage.")
	os.Exit(1)
}

// extractGlobalFlags strips flags that apply to every subcommand and
// returns the remaining arguments.
func extractGlobalFlags(raw []string) ([]string, error) {
	filtered := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		switch {
		case arg == "-c" || arg == "--config":
			if i+1 >= len(raw) {
				return nil, fmt.Errorf("%s requires a path argument", arg)
			}
			i++
			configPath = raw[i]
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		default:
			filtered = append(filtered, arg)
		}
	}
	return filtered, nil
}

func dispatchSubcommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return true, 0
	case "--help", "-h", "help":
		printHelp()
		return true, 0
	case "summary":
		return true, runCommand(runSummaryCommand, args[1:])
	case "errors":
		return true, runCommand(runErrorsCommand, args[1:])
	case "actions":
		return true, runCommand(runActionsCommand, args[1:])
	case "screenshots":
		return true, runCommand(runScreenshotsCommand, args[1:])
	case "screenshot":
		return true, runCommand(runScreenshotCommand, args[1:])
	case "console":
		return true, runCommand(runConsoleCommand, args[1:])
	case "around":
		return true, runCommand(runAroundCommand, args[1:])
	case "timeline":
		return true, runCommand(runTimelineCommand, args[1:])
	case "diagnose":
		return true, runCommand(runDiagnoseCommand, args[1:])
	case "diagnose-all":
		return true, runCommand(runDiagnoseAllCommand, args[1:])
	case "serve":
		return true, runCommand(runServeCommand, args[1:])
	case "config":
		return true, runCommand(runConfigCommand, args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			fmt.Fprintf(os.Stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(os.Stderr, "Run 'tracehound --help' for usage.")
		return true, 1
	}
}

// runCommand executes a subcommand handler. Failures become the error
// envelope on stdout so callers always get machine-readable output; the
// exit code still signals the failure class.
func runCommand(handler func([]string) error, args []string) int {
	err := handler(args)
	if err == nil {
		return 0
	}
	if stderrors.Is(err, flag.ErrHelp) {
		return 0
	}
	if writeErr := report.WriteError(os.Stdout, err); writeErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCodeForError(err)
}

// parseFlags wraps FlagSet.Parse so malformed flag values surface as
// INVALID_QUERY in the error envelope. Help requests pass through.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return err
		}
		return errors.Wrap(err, errors.ErrCodeInvalidQuery, err.Error())
	}
	return nil
}

// tracePathArg returns the optional positional trace path. The flag
// package stops parsing at the first positional, so anything after it
// would be silently ignored; reject that instead.
func tracePathArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() > 1 {
		return "", errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("unexpected argument %q after the trace path", fs.Arg(1))).
			WithRemediation("pass flags before the trace path")
	}
	return fs.Arg(0), nil
}

func printHelp() {
	fmt.Println("Tracehound - Browser Trace Diagnostics")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  tracehound [FLAGS] <COMMAND> [OPTIONS] [TRACE]")
	fmt.Println()
	fmt.Println("  TRACE is a trace archive (.zip) or pre-extracted directory. When")
	fmt.Println("  omitted, recent archives in the results directory are offered for")
	fmt.Println("  interactive selection.")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  summary [trace]                  Verdict, counts, and duration at a glance")
	fmt.Println("  errors [trace]                   Console errors, page errors, and runner failures")
	fmt.Println("  actions [trace]                  Action log with durations and failure flags")
	fmt.Println("  screenshots [trace]              Screencast frame listing")
	fmt.Println("  screenshot [--at <i|error>] [--context <n>] [trace]")
	fmt.Println("                                   One frame plus surrounding context")
	fmt.Println("  console [--type <t>] [--filter <regex>] [--limit <n>] [trace]")
	fmt.Println("                                   Console messages, filterable")
	fmt.Println("  around --time <ms> [--window <ms>] [trace]")
	fmt.Println("                                   Everything within a window of a timestamp")
	fmt.Println("  timeline [trace]                 Merged chronological view of all signals")
	fmt.Println("  diagnose [--verbose] [trace]     Signature-matched issues with remedies")
	fmt.Println("  diagnose-all [--verbose]         Diagnose every archive in the results directory")
	fmt.Println("  serve [--bind host:port]         Read-only HTTP projection server")
	fmt.Println("  config [check|show|path]         Manage configuration")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -c, --config <path>              Use custom config file")
	fmt.Println("  -v, --version                    Show version information")
	fmt.Println("  -h, --help                       Show this help")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  TRACEHOUND_RESULTS_DIR           Override the trace results directory")
	fmt.Println("  TRACEHOUND_STALE_AFTER           Stale-age threshold in minutes")
	fmt.Println("  TRACEHOUND_CONSOLE_LIMIT         Default console result cap")
	fmt.Println("  TRACEHOUND_LOG_ENABLED           Enable the JSONL diagnostic log")
	fmt.Println("  TRACEHOUND_LOG_DIR               Override the diagnostic log directory")
	fmt.Println("  TRACEHOUND_LOG_LEVEL             Log level (debug, info, warn, error)")
	fmt.Println("  TRACEHOUND_TRACE_SPANS           Export pipeline spans to stderr")
	fmt.Println("  TRACEHOUND_BIND                  Override the serve bind address")
	fmt.Println("  TRACEHOUND_AUTH_TOKEN            Token clients must supply to the server")
	fmt.Println("  TRACEHOUND_PUBLIC_METRICS        Expose /metrics without authentication")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("  User config:    ~/.tracehound/config.yaml")
	fmt.Println("  Project config: ./.tracehound/config.yaml")
	fmt.Println("  Run 'tracehound config check' to validate your setup")
	fmt.Println()
	fmt.Println("OUTPUT:")
	fmt.Println("  Every report command prints exactly one JSON envelope on stdout:")
	fmt.Println(`  {"command", "tracePath", "results"} on success, {"error"} on failure.`)
	fmt.Println("  Prompts, warnings, and spans go to stderr.")
}

func printVersion() {
	fmt.Printf("Tracehound %s\n", version)
	if commit != "unknown" {
		fmt.Printf("  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Printf("  Built:      %s\n", buildDate)
	}
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

func runConfigCommand(args []string) error {
	subCmd := "show"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "check":
		return runConfigCheck()
	case "show":
		return runConfigShow()
	case "path":
		return runConfigPath()
	default:
		return fmt.Errorf("unknown config command: %s (use check, show, or path)", subCmd)
	}
}

func runConfigCheck() error {
	fmt.Println("Checking tracehound configuration...")
	fmt.Println()

	home, _ := os.UserHomeDir()
	userConfig := filepath.Join(home, ".tracehound", "config.yaml")
	projectConfig := filepath.Join(".", ".tracehound", "config.yaml")

	fmt.Println("Configuration files:")
	if configPath != "" {
		fmt.Printf("  ✓ Explicit config: %s\n", configPath)
	}
	if _, err := os.Stat(userConfig); err == nil {
		fmt.Printf("  ✓ User config:    %s\n", userConfig)
	} else {
		fmt.Printf("  - User config:    %s (not found)\n", userConfig)
	}
	if _, err := os.Stat(projectConfig); err == nil {
		fmt.Printf("  ✓ Project config: %s\n", projectConfig)
	} else {
		fmt.Printf("  - Project config: %s (not found)\n", projectConfig)
	}
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	warnings := cfg.ValidationWarnings()
	if len(warnings) > 0 {
		fmt.Println("Warnings:")
		for _, w := range warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}
		fmt.Println()
	}

	resultsDir := paths.ResultsDir(cfg.ResultsDir)
	fmt.Println("Results directory:")
	if info, err := os.Stat(resultsDir); err == nil && info.IsDir() {
		staleAfter := time.Duration(cfg.StaleAfterMinutes) * time.Minute
		if candidates, err := trace.Discover(resultsDir, staleAfter); err == nil {
			fmt.Printf("  ✓ %s (%d archives)\n", resultsDir, len(candidates))
		} else {
			fmt.Printf("  ⚠ %s (unreadable: %v)\n", resultsDir, err)
		}
	} else {
		fmt.Printf("  - %s (not found; run your tests with tracing enabled)\n", resultsDir)
	}
	fmt.Println()

	fmt.Println("✓ Configuration is valid")
	return nil
}

func runConfigShow() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Printf("Traces:\n")
	fmt.Printf("  Results directory: %s\n", paths.ResultsDir(cfg.ResultsDir))
	fmt.Printf("  Stale after:       %dm\n", cfg.StaleAfterMinutes)
	fmt.Println()
	fmt.Printf("Report defaults:\n")
	fmt.Printf("  Console limit:      %d\n", cfg.Report.ConsoleLimit)
	fmt.Printf("  Around window:      %.0fms\n", cfg.Report.AroundWindowMs)
	fmt.Printf("  Screenshot context: %d\n", cfg.Report.ScreenshotContext)
	fmt.Printf("  Issue limit:        %d\n", cfg.Report.IssueLimit)
	fmt.Println()
	fmt.Printf("Logging:\n")
	fmt.Printf("  Enabled:   %v\n", cfg.Logging.Enabled)
	fmt.Printf("  Directory: %s\n", logDir(cfg))
	fmt.Printf("  Level:     %s\n", cfg.Logging.Level)
	fmt.Println()
	fmt.Printf("Telemetry:\n")
	fmt.Printf("  Span export: %v\n", cfg.Telemetry.Enabled)
	fmt.Println()
	fmt.Printf("Server:\n")
	fmt.Printf("  Bind:           %s\n", cfg.Server.Bind)
	fmt.Printf("  Require token:  %v\n", cfg.Server.RequireToken)
	fmt.Printf("  Public metrics: %v\n", cfg.Server.PublicMetrics)
	fmt.Printf("  Rate limit:     %.0f rps (burst %d)\n", cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	return nil
}

func runConfigPath() error {
	home, _ := os.UserHomeDir()
	fmt.Println("Configuration file locations:")
	fmt.Printf("  User:    %s\n", filepath.Join(home, ".tracehound", "config.yaml"))
	fmt.Printf("  Project: %s\n", filepath.Join(".", ".tracehound", "config.yaml"))
	if configPath != "" {
		fmt.Printf("  Flag:    %s\n", configPath)
	}
	fmt.Println()
	fmt.Println("Resolved directories:")
	resultsDir := paths.DefaultResultsDir
	logsDir := paths.LogsBaseDir()
	if cfg, err := loadConfig(); err == nil {
		resultsDir = paths.ResultsDir(cfg.ResultsDir)
		logsDir = logDir(cfg)
	}
	fmt.Printf("  Results: %s\n", resultsDir)
	fmt.Printf("  Logs:    %s\n", logsDir)
	return nil
}

func logDir(cfg *config.Config) string {
	if dir := strings.TrimSpace(cfg.Logging.Directory); dir != "" {
		return paths.ExpandHomePath(dir)
	}
	return paths.LogsBaseDir()
}
