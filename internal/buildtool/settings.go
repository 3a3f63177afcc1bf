package buildtool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Name of the per-project settings file shipped with the staff materials
const SettingsFile = "didit.yaml"

type Targets struct {
	Compile string `yaml:"compile"`
	Public  string `yaml:"public"`
	Hidden  string `yaml:"hidden"`
}

// How a project is built and tested. Args may use {target}, {report} and {dir} placeholders.
type Settings struct {
	Program   string   `yaml:"program"`
	Args      []string `yaml:"args"`
	ReportDir string   `yaml:"report_dir"`
	Targets   Targets  `yaml:"targets"`
}

func DefaultSettings() Settings {
	return Settings{
		Program:   "ant",
		Args:      []string{"{target}"},
		ReportDir: ".didit",
		Targets:   Targets{Compile: "compile", Public: "public", Hidden: "hidden"},
	}
}

// Settings from didit.yaml in `dir` layered over `defaults`; defaults alone if there is no file
func LoadSettings(dir string, defaults Settings) (Settings, error) {
	settings := defaults
	settings.Args = append([]string(nil), defaults.Args...)

	raw, err := os.ReadFile(filepath.Join(dir, SettingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return Settings{}, err
	}

	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("malformed %s: %w", SettingsFile, err)
	}
	if settings.Program == "" {
		return Settings{}, fmt.Errorf("%s: no build program", SettingsFile)
	}
	return settings, nil
}
