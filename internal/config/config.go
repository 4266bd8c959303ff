package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	apperrors "github.com/envboot/envboot/internal/errors"
)

// EnvPrefix is the prefix for all environment variable overrides.
const EnvPrefix = "ENVBOOT_"

// HardwareClass identifies the target accelerator the bootstrap prepares for.
type HardwareClass string

// Supported hardware classes.
const (
	HardwareCPU  HardwareClass = "cpu"
	HardwareCUDA HardwareClass = "cuda"
	HardwareROCm HardwareClass = "rocm"
)

// Mirror identifies the archive mirror resources are fetched from.
type Mirror string

// Supported mirrors.
const (
	MirrorPrimary Mirror = "primary"
	MirrorEU      Mirror = "eu"
	MirrorCN      Mirror = "cn"
)

// Default retry policy. Uniform across all resources; larger archives can be
// accommodated via --fetch-timeout rather than a per-resource policy.
const (
	DefaultRetries      = 3
	DefaultRetryWait    = 5 * time.Second
	DefaultFetchTimeout = 60 * time.Second
)

// AppConfig holds the complete runtime configuration of a bootstrap run.
// Values are resolved with the priority: CLI flags > environment variables
// (ENVBOOT_*) > defaults.
type AppConfig struct {
	// Hardware is the target hardware class (cpu, cuda, rocm). Required.
	Hardware HardwareClass
	// Mirror is the archive mirror to fetch from (primary, eu, cn). Required.
	Mirror Mirror
	// WithCorpus enables the optional evaluation-corpus archive.
	WithCorpus bool
	// WorkDir is the directory archives are downloaded to and unpacked under.
	WorkDir string
	// Retries is the per-task fetch attempt budget.
	Retries int
	// RetryWait is the fixed delay between fetch attempts.
	RetryWait time.Duration
	// FetchTimeout is the per-attempt stall timeout: an attempt is aborted
	// when no data arrives for this long.
	FetchTimeout time.Duration
	// Concurrency bounds concurrent fetches. Zero means one worker per task.
	Concurrency int
	// Quiet suppresses banners and progress output.
	Quiet bool
	// TUI enables the interactive fetch dashboard.
	TUI bool
	// DryRun prints planned actions without executing them.
	DryRun bool
	// NoColor disables ANSI colors in terminal output.
	NoColor bool
	// MetricsAddr, when non-empty, exposes Prometheus metrics on this
	// address for the duration of the run.
	MetricsAddr string
	// LogFile, when non-empty, duplicates structured logs into a rotating
	// file at this path.
	LogFile string
	// WorkflowMode short-circuits hardware-driver and deep-learning-runtime
	// installation. Set via ENVBOOT_WORKFLOW only; intended for constrained
	// automated environments.
	WorkflowMode bool
}

// validHardware is the enumerated set accepted by --hw.
var validHardware = map[HardwareClass]bool{
	HardwareCPU:  true,
	HardwareCUDA: true,
	HardwareROCm: true,
}

// validMirrors is the enumerated set accepted by --mirror.
var validMirrors = map[Mirror]bool{
	MirrorPrimary: true,
	MirrorEU:      true,
	MirrorCN:      true,
}

// ParseConfig parses command-line arguments into an AppConfig, applies
// environment overrides for flags not explicitly set, and validates the
// result.
//
// Invoking with zero arguments prints usage and returns flag.ErrHelp so the
// caller can exit 0 without side effects. Invalid flag values return a
// ConfigError after a usage reminder has been written to errWriter.
//
// Parameters:
//   - programName: The program name used in the usage text.
//   - args: The command-line arguments (without the program name).
//   - errWriter: The writer for usage and error output.
//
// Returns:
//   - AppConfig: The parsed configuration.
//   - error: flag.ErrHelp for help/zero-argument invocations, a ConfigError
//     for validation failures, or nil.
func ParseConfig(programName string, args []string, errWriter io.Writer) (AppConfig, error) {
	cfg := AppConfig{
		WorkDir:      ".",
		Retries:      DefaultRetries,
		RetryWait:    DefaultRetryWait,
		FetchTimeout: DefaultFetchTimeout,
	}

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errWriter)

	var hw, mirror string
	fs.StringVar(&hw, "hw", "", "target hardware class: cpu, cuda or rocm (required)")
	fs.StringVar(&mirror, "mirror", "", "archive mirror: primary, eu or cn (required)")
	fs.BoolVar(&cfg.WithCorpus, "with-corpus", false, "also fetch the optional evaluation corpus archive")
	fs.StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "working directory for downloads and unpacking")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "fetch attempts per resource")
	fs.DurationVar(&cfg.RetryWait, "retry-wait", cfg.RetryWait, "delay between fetch attempts")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "per-attempt stall timeout")
	fs.IntVar(&cfg.Concurrency, "concurrency", 0, "max concurrent fetches (0 = one worker per resource)")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "suppress banners and progress output")
	fs.BoolVar(&cfg.Quiet, "q", false, "shorthand for --quiet")
	fs.BoolVar(&cfg.TUI, "tui", false, "interactive fetch dashboard")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "print planned actions without executing them")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "disable colored output")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address during the run")
	fs.StringVar(&cfg.LogFile, "log-file", "", "duplicate structured logs into this rotating file")

	fs.Usage = func() { printUsage(fs, programName) }

	// A bare invocation is a request for guidance, not a bootstrap run.
	if len(args) == 0 {
		fs.Usage()
		return cfg, flag.ErrHelp
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cfg, err
		}
		return cfg, apperrors.NewConfigError("%v", err)
	}

	cfg.Hardware = HardwareClass(hw)
	cfg.Mirror = Mirror(mirror)
	applyEnvOverrides(&cfg, fs)
	cfg.WorkflowMode = getEnvBool("WORKFLOW", false)

	if err := validate(cfg); err != nil {
		fmt.Fprintf(errWriter, "%s\nRun %q for usage.\n", err, programName+" --help")
		return cfg, err
	}
	return cfg, nil
}

// validate checks enumerated values and numeric ranges.
func validate(cfg AppConfig) error {
	if cfg.Hardware == "" {
		return apperrors.NewConfigError("missing required flag --hw (cpu, cuda or rocm)")
	}
	if !validHardware[cfg.Hardware] {
		return apperrors.NewConfigError("invalid value %q for --hw: want cpu, cuda or rocm", string(cfg.Hardware))
	}
	if cfg.Mirror == "" {
		return apperrors.NewConfigError("missing required flag --mirror (primary, eu or cn)")
	}
	if !validMirrors[cfg.Mirror] {
		return apperrors.NewConfigError("invalid value %q for --mirror: want primary, eu or cn", string(cfg.Mirror))
	}
	if cfg.Retries < 1 {
		return apperrors.NewConfigError("--retries must be at least 1, got %d", cfg.Retries)
	}
	if cfg.RetryWait < 0 {
		return apperrors.NewConfigError("--retry-wait must not be negative")
	}
	if cfg.FetchTimeout <= 0 {
		return apperrors.NewConfigError("--fetch-timeout must be positive")
	}
	if cfg.Concurrency < 0 {
		return apperrors.NewConfigError("--concurrency must not be negative")
	}
	return nil
}

// printUsage writes the full usage text including environment variable notes.
func printUsage(fs *flag.FlagSet, programName string) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage: %s --hw CLASS --mirror NAME [options]\n\n", programName)
	fmt.Fprintf(out, "Prepares this machine for the ML inference stack: installs system\n")
	fmt.Fprintf(out, "packages, fetches model archives from the selected mirror and installs\n")
	fmt.Fprintf(out, "the deep-learning runtime.\n\nOptions:\n")
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEvery flag can also be set via an %s* environment variable\n", EnvPrefix)
	fmt.Fprintf(out, "(e.g. %sMIRROR=eu). %sWORKFLOW=1 skips driver and runtime\n", EnvPrefix, EnvPrefix)
	fmt.Fprintf(out, "installation for constrained automated environments.\n")
}
