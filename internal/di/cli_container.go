package di

import (
	"flag"
	"strings"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/adapters/filter"
	"github.com/mikey/phish-scanner/internal/config"
	"github.com/mikey/phish-scanner/internal/factory"
	"github.com/mikey/phish-scanner/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	InputFile  string
	ConfigFile string

	// Output flags
	JSON    bool
	Verbose bool
	JSONLog bool

	// Engine flags
	CoreMode  string
	Parallel  bool
	NoDNS     bool
	DNSServer string
	Whitelist string

	// Store query flags
	Stats bool
	Trend int
	Show  string
	Since time.Duration
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := registerFlags(flag.CommandLine)
	flag.Parse()
	return flags
}

// ParseArgs parses args with a fresh flag set
func ParseArgs(args []string) (*CLIFlags, error) {
	fs := flag.NewFlagSet("phish-scan", flag.ContinueOnError)
	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

func registerFlags(fs *flag.FlagSet) *CLIFlags {
	flags := &CLIFlags{}

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides engine flags)")

	// Output flags
	fs.BoolVar(&flags.JSON, "json", false, "Print the scan report as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	// Engine flags
	fs.StringVar(&flags.CoreMode, "core-mode", "naive", "Registrable domain approximation (naive, publicsuffix)")
	fs.BoolVar(&flags.Parallel, "parallel", false, "Evaluate heuristic rules concurrently")
	fs.BoolVar(&flags.NoDNS, "no-dns", false, "Skip SPF and DMARC lookups")
	fs.StringVar(&flags.DNSServer, "dns-server", "", "DNS server for TXT lookups (default from /etc/resolv.conf)")
	fs.StringVar(&flags.Whitelist, "whitelist", "", "Comma-separated list of whitelisted domains")

	// Store query flags
	fs.BoolVar(&flags.Stats, "stats", false, "Print statistics of stored scans and exit")
	fs.IntVar(&flags.Trend, "trend", 7, "Days of daily counts printed with -stats (7, 14 or 30)")
	fs.StringVar(&flags.Show, "show", "", "Print a stored scan by ID and exit")
	fs.DurationVar(&flags.Since, "since", 24*time.Hour, "Window for -stats")

	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			applyOutputFlags(cfg, flags)
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideScanner(container); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(func(f *factory.FilterFactory) (*filter.CliFilter, error) {
		return f.CreateCliFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("domains.core_mode", flags.CoreMode)
	v.Set("engine.parallel", flags.Parallel)
	v.Set("dns.enabled", !flags.NoDNS)
	v.Set("dns.server", flags.DNSServer)

	// A one-shot scan has nothing to clean up
	v.Set("store.type", "memory")
	v.Set("store.cleanup_frequency", "0s")

	if flags.Whitelist != "" {
		v.Set("server.whitelisted_domains", splitList(flags.Whitelist))
	}

	cfg := config.NewFromViper(v)
	applyOutputFlags(cfg, flags)
	return cfg
}

// applyOutputFlags sets the cli specific settings, which always come from flags
func applyOutputFlags(cfg *config.Config, flags *CLIFlags) {
	v := cfg.GetViper()
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.json", flags.JSON)
	if flags.NoDNS {
		v.Set("dns.enabled", false)
	}
	if flags.Whitelist != "" {
		v.Set("server.whitelisted_domains", splitList(flags.Whitelist))
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
