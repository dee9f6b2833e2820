// Package config loads and saves the project's mluva.yaml descriptor.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	hcversion "github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the current mluva.yaml schema version. A future,
// incompatible schema revision bumps this and Load rejects anything newer,
// the same way the bytecode codec gates its own format version.
const SchemaVersion = "1.0.0"

// FileName is the project config's filename at the repository root.
const FileName = "mluva.yaml"

// Config is a project's mluva.yaml contents.
type Config struct {
	ProjectName string `yaml:"project_name"`
	RootModule  string `yaml:"root_module"`
	Schema      string `yaml:"schema_version,omitempty"`
}

// DefaultRootModule is used when a project omits root_module.
const DefaultRootModule = "main"

// New returns a Config for a freshly-initialized project.
func New(projectName string) *Config {
	return &Config{ProjectName: projectName, RootModule: DefaultRootModule, Schema: SchemaVersion}
}

// Load reads and parses dir/mluva.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if c.RootModule == "" {
		c.RootModule = DefaultRootModule
	}
	if c.Schema != "" {
		if err := checkSchema(c.Schema); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func checkSchema(version string) error {
	have, err := hcversion.NewVersion(version)
	if err != nil {
		return fmt.Errorf("config: invalid schema_version %q: %w", version, err)
	}
	cur, _ := hcversion.NewVersion(SchemaVersion)
	if have.GreaterThan(cur) {
		return fmt.Errorf("config: mluva.yaml schema %s is newer than this binary supports (%s)", have, cur)
	}
	return nil
}

// Save writes c to dir/mluva.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Exists reports whether dir already has a mluva.yaml.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}
