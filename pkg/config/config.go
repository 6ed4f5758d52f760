// Package config holds the elaborator's tunables: warning and feature
// toggles addressable by name, plus project settings that can come from a
// slang.yaml file or from command-line flags (flags win).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Feature int

const (
	FeatSrcAttrs Feature = iota // annotate IR elements with src attributes
	FeatInitAttrs               // derive init attributes from variable initializers
	FeatPrintCells              // lower $display to print cells
	FeatCheck                   // run the module sanity check after population
	FeatCount
)

type Warning int

const (
	WarnPriorityCheck Warning = iota // unique/priority case hints are ignored
	WarnNonEdgeSensitivity           // non-edge event turned into implicit sensitivity
	WarnEmptyStatement               // tolerated empty_statement system call
	WarnUnconnectedPort              // instance port left unconnected
	WarnExtra                        // miscellaneous extra warnings
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	TopModule    string
	IncludePaths []string
	Defines      map[string]string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Defines:    make(map[string]string),
	}

	features := map[Feature]Info{
		FeatSrcAttrs:   {"src-attrs", true, "Annotate wires, cells and processes with source ranges."},
		FeatInitAttrs:  {"init-attrs", true, "Derive init attributes from constant variable initializers."},
		FeatPrintCells: {"print-cells", true, "Lower $display calls to print cells."},
		FeatCheck:      {"check", true, "Run structural sanity checks on each populated module."},
	}

	warnings := map[Warning]Info{
		WarnPriorityCheck:      {"priority-check", true, "Warn when unique/priority case hints are ignored."},
		WarnNonEdgeSensitivity: {"non-edge", true, "Warn when non-edge sensitivity degrades to implicit sensitivity."},
		WarnEmptyStatement:     {"empty-statement", false, "Warn when an empty_statement call is dropped."},
		WarnUnconnectedPort:    {"unconnected-port", true, "Warn about unconnected instance ports."},
		WarnExtra:              {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

// ApplyFlag interprets a -W / -Wno- / -F / -Fno- style toggle.
func (c *Config) ApplyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		name = trimmed
		isWarning = true
	}
	if isNo {
		name = strings.TrimPrefix(name, "no-")
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
	}
}

// projectFile mirrors the slang.yaml schema.
type projectFile struct {
	Top      string            `yaml:"top"`
	Includes []string          `yaml:"includes"`
	Defines  map[string]string `yaml:"defines"`
	Warnings map[string]bool   `yaml:"warnings"`
	Features map[string]bool   `yaml:"features"`
}

// LoadProjectFile merges settings from a YAML project file into the
// config. Unknown warning or feature names are reported as errors so
// typos do not silently disable checks.
func (c *Config) LoadProjectFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.applyProjectData(data, path)
}

func (c *Config) applyProjectData(data []byte, path string) error {
	var pf projectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if pf.Top != "" {
		c.TopModule = pf.Top
	}
	c.IncludePaths = append(c.IncludePaths, pf.Includes...)
	for k, v := range pf.Defines {
		c.Defines[k] = v
	}
	for name, enabled := range pf.Warnings {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("%s: unknown warning %q", path, name)
		}
		c.SetWarning(w, enabled)
	}
	for name, enabled := range pf.Features {
		f, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("%s: unknown feature %q", path, name)
		}
		c.SetFeature(f, enabled)
	}
	return nil
}

// ParseDefine splits a -DNAME[=VALUE] payload.
func ParseDefine(arg string) (name, value string) {
	if idx := strings.IndexByte(arg, '='); idx >= 0 {
		return arg[:idx], arg[idx+1:]
	}
	return arg, "1"
}
