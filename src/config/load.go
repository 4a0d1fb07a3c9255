package config

import (
	"os"

	"git.coderun.dev/coderun/coderun/src/oops"
	"gopkg.in/yaml.v3"
)

// LoadOverlay reads a YAML file and merges it over Config. Keys missing from
// the file keep their current values.
func LoadOverlay(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return oops.New(err, "failed to read config file %s", path)
	}
	return ApplyOverlay(&Config, contents)
}

func ApplyOverlay(cfg *CoderunConfig, contents []byte) error {
	err := yaml.Unmarshal(contents, cfg)
	if err != nil {
		return oops.New(err, "failed to parse config")
	}

	switch cfg.Env {
	case Live, Beta, Dev:
	default:
		return oops.New(nil, "unknown environment %q", cfg.Env)
	}
	return nil
}
