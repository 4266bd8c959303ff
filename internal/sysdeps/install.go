package sysdeps

import (
	"context"
	"errors"

	"github.com/envboot/envboot/internal/config"
	"github.com/envboot/envboot/internal/logging"
)

// ErrNoPackageManager is returned when none of the supported package managers
// is found on PATH.
var ErrNoPackageManager = errors.New("sysdeps: no supported package manager found (apt-get, dnf or brew)")

// PackageManager describes a supported system package manager and how to
// invoke an install with it.
type PackageManager struct {
	// Name is the executable name (apt-get, dnf, brew).
	Name string
	// installArgs are the arguments preceding the package list.
	installArgs []string
	// refreshArgs, when non-empty, are run once before the first install
	// to refresh the package index.
	refreshArgs []string
}

// managers lists the supported package managers in probe order.
var managers = []PackageManager{
	{Name: "apt-get", installArgs: []string{"install", "-y"}, refreshArgs: []string{"update"}},
	{Name: "dnf", installArgs: []string{"install", "-y"}},
	{Name: "brew", installArgs: []string{"install"}},
}

// packageSets maps package manager name -> set name -> package list.
// The sets cover the compiler toolchain, media libraries for audio handling,
// and the Python interpreter the runtime install needs.
var packageSets = map[string]map[string][]string{
	"apt-get": {
		"toolchain": {"build-essential", "cmake", "pkg-config", "git"},
		"media":     {"ffmpeg", "libsndfile1", "sox"},
		"python":    {"python3", "python3-pip", "python3-venv"},
	},
	"dnf": {
		"toolchain": {"gcc", "gcc-c++", "make", "cmake", "pkgconf-pkg-config", "git"},
		"media":     {"ffmpeg", "libsndfile", "sox"},
		"python":    {"python3", "python3-pip"},
	},
	"brew": {
		"toolchain": {"cmake", "pkg-config", "git"},
		"media":     {"ffmpeg", "libsndfile", "sox"},
		"python":    {"python@3.12"},
	},
}

// driverPackages maps hardware class -> package manager name -> packages.
// CPU targets need no drivers. ROCm has no brew packaging; the empty list
// makes driver install a no-op there.
var driverPackages = map[config.HardwareClass]map[string][]string{
	config.HardwareCUDA: {
		"apt-get": {"nvidia-cuda-toolkit"},
		"dnf":     {"cuda-toolkit"},
	},
	config.HardwareROCm: {
		"apt-get": {"rocm-hip-runtime"},
		"dnf":     {"rocm-hip-runtime"},
	},
}

// installSetOrder is the order package sets are installed in. The toolchain
// goes first because media packages may trigger source builds on brew.
var installSetOrder = []string{"toolchain", "media", "python"}

// Installer installs system packages through a detected package manager.
type Installer struct {
	runner    Runner
	log       logging.Logger
	dryRun    bool
	pm        *PackageManager
	refreshed bool
}

// NewInstaller creates an Installer.
//
// Parameters:
//   - runner: The process runner used for package manager invocations.
//   - log: The logger.
//   - dryRun: When true, commands are logged but not executed.
//
// Returns:
//   - *Installer: The constructed installer.
func NewInstaller(runner Runner, log logging.Logger, dryRun bool) *Installer {
	return &Installer{runner: runner, log: log, dryRun: dryRun}
}

// DetectManager probes PATH for a supported package manager and memoizes the
// result.
//
// Returns:
//   - *PackageManager: The detected manager.
//   - error: ErrNoPackageManager when nothing supported is installed.
func (in *Installer) DetectManager() (*PackageManager, error) {
	if in.pm != nil {
		return in.pm, nil
	}
	for i := range managers {
		if _, err := in.runner.LookPath(managers[i].Name); err == nil {
			in.pm = &managers[i]
			in.log.Info("package manager detected", logging.String("manager", managers[i].Name))
			return in.pm, nil
		}
	}
	return nil, ErrNoPackageManager
}

// InstallBase installs the toolchain, media and Python package sets for the
// detected package manager. Installs are fail-fast: the first nonzero exit
// aborts with the captured output.
//
// Parameters:
//   - ctx: The context for command cancellation.
//
// Returns:
//   - error: The first CommandError encountered, or nil.
func (in *Installer) InstallBase(ctx context.Context) error {
	pm, err := in.DetectManager()
	if err != nil {
		return err
	}
	for _, set := range installSetOrder {
		pkgs := packageSets[pm.Name][set]
		if len(pkgs) == 0 {
			continue
		}
		if err := in.install(ctx, pm, "install "+set+" packages", pkgs); err != nil {
			return err
		}
	}
	return nil
}

// InstallDrivers installs the accelerator driver packages for the given
// hardware class. A CPU target, or a manager without driver packaging, is a
// no-op.
//
// Parameters:
//   - ctx: The context for command cancellation.
//   - hw: The target hardware class.
//
// Returns:
//   - error: The first CommandError encountered, or nil.
func (in *Installer) InstallDrivers(ctx context.Context, hw config.HardwareClass) error {
	if hw == config.HardwareCPU {
		in.log.Info("cpu target, no driver packages required")
		return nil
	}
	pm, err := in.DetectManager()
	if err != nil {
		return err
	}
	pkgs := driverPackages[hw][pm.Name]
	if len(pkgs) == 0 {
		in.log.Warn("no driver packaging for this platform, skipping",
			logging.String("hardware", string(hw)), logging.String("manager", pm.Name))
		return nil
	}
	return in.install(ctx, pm, "install "+string(hw)+" drivers", pkgs)
}

// install runs one package-manager install, refreshing the index first when
// the manager requires it.
func (in *Installer) install(ctx context.Context, pm *PackageManager, operation string, pkgs []string) error {
	if in.dryRun {
		in.log.Info("dry-run: would install packages",
			logging.String("operation", operation), logging.String("manager", pm.Name))
		return nil
	}
	if len(pm.refreshArgs) > 0 && !in.refreshed {
		if err := in.runner.Run(ctx, "refresh package index", pm.Name, pm.refreshArgs...); err != nil {
			return err
		}
		in.refreshed = true
	}
	args := append(append([]string{}, pm.installArgs...), pkgs...)
	return in.runner.Run(ctx, operation, pm.Name, args...)
}
