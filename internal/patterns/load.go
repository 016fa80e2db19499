package patterns

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML document shape of a pattern library.
type File struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Load reads and compiles a pattern library from a YAML file.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern library: %w", err)
	}
	lib, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("pattern library %s: %w", path, err)
	}
	return lib, nil
}

// Parse compiles a pattern library from YAML bytes.
func Parse(data []byte) (*Library, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pattern library: %w", err)
	}
	return New(f.Version, f.Rules)
}
