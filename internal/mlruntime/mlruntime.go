// Package mlruntime installs the deep-learning runtime and its Python
// dependencies once the system packages and model resources are in place.
package mlruntime

import (
	"context"

	"github.com/envboot/envboot/internal/config"
	apperrors "github.com/envboot/envboot/internal/errors"
	"github.com/envboot/envboot/internal/logging"
	"github.com/envboot/envboot/internal/sysdeps"
)

// torchIndexes maps each hardware class to the wheel index serving builds
// for it. The default PyPI index only carries CUDA wheels, so every class
// pins its index explicitly.
var torchIndexes = map[config.HardwareClass]string{
	config.HardwareCPU:  "https://download.pytorch.org/whl/cpu",
	config.HardwareCUDA: "https://download.pytorch.org/whl/cu121",
	config.HardwareROCm: "https://download.pytorch.org/whl/rocm6.0",
}

// pythonDeps are the packages installed after the runtime itself, in order.
var pythonDeps = []string{
	"numpy",
	"scipy",
	"soundfile",
	"librosa",
	"sentencepiece",
	"onnxruntime",
}

// Installer drives pip through the command runner.
type Installer struct {
	runner sysdeps.Runner
	log    logging.Logger
	dryRun bool
}

// NewInstaller creates a runtime installer.
//
// Parameters:
//   - runner: Executes pip invocations.
//   - log: Destination for install diagnostics.
//   - dryRun: When true, commands are logged but not executed.
//
// Returns:
//   - *Installer: The configured installer.
func NewInstaller(runner sysdeps.Runner, log logging.Logger, dryRun bool) *Installer {
	return &Installer{runner: runner, log: log, dryRun: dryRun}
}

// Install installs the runtime for the given hardware class and then the
// Python dependency set. The first failing command aborts the rest.
func (in *Installer) Install(ctx context.Context, hw config.HardwareClass) error {
	index, ok := torchIndexes[hw]
	if !ok {
		return apperrors.NewConfigError("no runtime build for hardware class %q", string(hw))
	}

	steps := []struct {
		operation string
		args      []string
	}{
		{"upgrade pip", []string{"-m", "pip", "install", "--upgrade", "pip"}},
		{"install torch (" + string(hw) + ")", []string{"-m", "pip", "install", "torch", "torchaudio", "--index-url", index}},
		{"install python dependencies", append([]string{"-m", "pip", "install"}, pythonDeps...)},
	}

	for _, step := range steps {
		if in.dryRun {
			in.log.Info("dry-run: would run pip step",
				logging.String("operation", step.operation))
			continue
		}
		in.log.Info("running pip step", logging.String("operation", step.operation))
		if err := in.runner.Run(ctx, step.operation, "python3", step.args...); err != nil {
			return err
		}
	}
	return nil
}
