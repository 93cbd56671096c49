// Package config resolves the optional per-project defaults file that
// supplies default flag values for mmv/mcp, with the same precedence
// model (defaults < global user config < project config < explicit CLI
// override) used for ticket configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/ngrash/mmv/internal/mmverrors"
)

// Defaults holds the resolved default value for every boolean flag.
// CLI flags, when explicitly passed, always win over these.
type Defaults struct {
	NUL        bool
	DryRun     bool
	Encode     bool
	Individual bool
	NoBackup   bool
	Verbose    bool

	Sources Sources
}

// Sources records which config files, if any, contributed to Defaults.
type Sources struct {
	Global  string
	Project string
}

// fileConfig is the on-disk shape. Pointer fields distinguish "absent"
// from "explicitly false" so a config file can legitimately override a
// default that happens to be true.
type fileConfig struct {
	NUL        *bool `json:"nul,omitempty"`
	DryRun     *bool `json:"dryrun,omitempty"`
	Encode     *bool `json:"encode,omitempty"`
	Individual *bool `json:"individual,omitempty"`
	NoBackup   *bool `json:"no_backup,omitempty"`
	Verbose    *bool `json:"verbose,omitempty"`
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	// Initial is the product's built-in defaults (e.g. mcp defaults
	// NoBackup to true, mmv to false) before any config file is applied.
	Initial Defaults

	// WorkDir is the effective working directory (post -C/--cwd).
	WorkDir string

	// ConfigPath is an explicit --config override; empty means "look
	// for the default project file".
	ConfigPath string

	// Product names the variant ("mmv" or "mcp"), used both for the
	// default project filename (.mmv.json/.mcp.json) and the global
	// config directory name.
	Product string

	Env map[string]string
}

// Load resolves Defaults by layering the global and project config files
// over input.Initial.
func Load(input LoadInput) (Defaults, error) {
	cfg := input.Initial

	globalPath := globalConfigPath(input.Env, input.Product)

	globalCfg, loadedGlobal, err := loadFile(globalPath, false)
	if err != nil {
		return Defaults{}, err
	}

	if loadedGlobal {
		cfg = merge(cfg, globalCfg)
		cfg.Sources.Global = globalPath
	}

	projectPath := input.ConfigPath
	mustExist := projectPath != ""

	if projectPath == "" {
		projectPath = filepath.Join(input.WorkDir, "."+input.Product+".json")
	} else if !filepath.IsAbs(projectPath) {
		projectPath = filepath.Join(input.WorkDir, projectPath)
	}

	projectCfg, loadedProject, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Defaults{}, err
	}

	if loadedProject {
		cfg = merge(cfg, projectCfg)
		cfg.Sources.Project = projectPath
	}

	return cfg, nil
}

// globalConfigPath mirrors XDG_CONFIG_HOME resolution: $XDG_CONFIG_HOME/<product>/config.json,
// falling back to $HOME/.config/<product>/config.json.
func globalConfigPath(env map[string]string, product string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, product, "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", product, "config.json")
	}

	return ""
}

func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	if path == "" {
		return fileConfig{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return fileConfig{}, false, fmt.Errorf("%w: %s", mmverrors.ErrConfigFileNotFound, path)
			}

			return fileConfig{}, false, nil
		}

		return fileConfig{}, false, fmt.Errorf("%w %s: %w", mmverrors.ErrConfigInvalid, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", mmverrors.ErrConfigInvalid, path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", mmverrors.ErrConfigInvalid, path, err)
	}

	return fc, true, nil
}

func merge(base Defaults, overlay fileConfig) Defaults {
	if overlay.NUL != nil {
		base.NUL = *overlay.NUL
	}

	if overlay.DryRun != nil {
		base.DryRun = *overlay.DryRun
	}

	if overlay.Encode != nil {
		base.Encode = *overlay.Encode
	}

	if overlay.Individual != nil {
		base.Individual = *overlay.Individual
	}

	if overlay.NoBackup != nil {
		base.NoBackup = *overlay.NoBackup
	}

	if overlay.Verbose != nil {
		base.Verbose = *overlay.Verbose
	}

	return base
}
