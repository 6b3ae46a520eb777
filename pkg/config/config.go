package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/smith-xyz/golang-sectest-generator/pkg/record"
)

// Embedded default configuration
// Use 'go generate ./pkg/config' to update from root config.toml
//
//go:generate cp ../../config.toml default_config.toml
//go:embed default_config.toml
var embeddedConfigData []byte

// Config holds the application configuration.
type Config struct {
	Generator GeneratorConfig          `toml:"generator"`
	Sections  map[string]SectionConfig `toml:"sections"`
}

// GeneratorConfig holds discovery and emission settings.
type GeneratorConfig struct {
	Directive       string   `toml:"directive"`
	SidecarFileName string   `toml:"sidecar_file_name"`
	ExcludeDirs     []string `toml:"exclude_dirs"`
	Strict          bool     `toml:"strict"`
}

// SectionConfig holds a per-platform section-name override pair.
type SectionConfig struct {
	Records string `toml:"records"`
	Names   string `toml:"names"`
}

// DefaultConfig returns the default configuration with optional local overrides.
// It always starts with the embedded config, then optionally replaces it with
// a local config.toml.
func DefaultConfig() (*Config, error) {
	var config Config
	if err := toml.Unmarshal(embeddedConfigData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}

	// Look for local config.toml to override defaults
	localConfigPaths := []string{
		"config.toml",       // Current directory (project root when running binary)
		"../config.toml",    // Parent directory (for tests in subdirs)
		"../../config.toml", // Two levels up (for tests in pkg/*/test)
	}

	for _, path := range localConfigPaths {
		if _, err := os.Stat(path); err == nil {
			localConfig, err := LoadFromFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to load local config %s: %v\n", path, err)
				break
			}
			return localConfig, nil
		}
	}

	return &config, nil
}

// LoadFromFile loads configuration from a TOML file.
func LoadFromFile(filepath string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(filepath, &config); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", filepath, err)
	}
	return &config, nil
}

// Directive returns the configured directive name, falling back to the
// built-in default when the config file leaves it empty.
func (c *Config) Directive() string {
	if c.Generator.Directive == "" {
		return "sectest:probe"
	}
	return c.Generator.Directive
}

// SidecarFileName returns the configured sidecar file name with a fallback.
func (c *Config) SidecarFileName() string {
	if c.Generator.SidecarFileName == "" {
		return "zz_sectest_records.go"
	}
	return c.Generator.SidecarFileName
}

// ExcludedDir reports whether a directory name is skipped during discovery.
func (c *Config) ExcludedDir(name string) bool {
	dirs := c.Generator.ExcludeDirs
	if len(dirs) == 0 {
		dirs = []string{"vendor", "testdata"}
	}
	for _, d := range dirs {
		if name == d {
			return true
		}
	}
	return false
}

// SectionsFor returns the section-name pair for a target platform, applying
// any configured override on top of the wire-contract defaults.
func (c *Config) SectionsFor(platform record.Platform) (record.Sections, error) {
	sections, err := record.SectionsFor(platform)
	if err != nil {
		return record.Sections{}, err
	}

	if override, ok := c.Sections[string(platform)]; ok {
		if override.Records != "" {
			sections.Records = override.Records
		}
		if override.Names != "" {
			sections.Names = override.Names
		}
	}

	return sections, nil
}
