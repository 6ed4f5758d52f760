package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.True(t, cfg.IsFeatureEnabled(FeatSrcAttrs))
	assert.True(t, cfg.IsFeatureEnabled(FeatCheck))
	assert.True(t, cfg.IsWarningEnabled(WarnPriorityCheck))
	assert.False(t, cfg.IsWarningEnabled(WarnEmptyStatement))
}

func TestApplyFlag(t *testing.T) {
	cfg := NewConfig()

	cfg.ApplyFlag("-Wno-priority-check")
	assert.False(t, cfg.IsWarningEnabled(WarnPriorityCheck))

	cfg.ApplyFlag("-Wpriority-check")
	assert.True(t, cfg.IsWarningEnabled(WarnPriorityCheck))

	cfg.ApplyFlag("-Fno-src-attrs")
	assert.False(t, cfg.IsFeatureEnabled(FeatSrcAttrs))

	cfg.ApplyFlag("-Wall")
	for i := Warning(0); i < WarnCount; i++ {
		assert.True(t, cfg.IsWarningEnabled(i), "warning %s", cfg.WarningName(i))
	}
	cfg.ApplyFlag("-Wno-all")
	for i := Warning(0); i < WarnCount; i++ {
		assert.False(t, cfg.IsWarningEnabled(i), "warning %s", cfg.WarningName(i))
	}
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slang.yaml")
	content := `
top: cpu
includes:
  - rtl/include
  - rtl/common
defines:
  WIDTH: "8"
warnings:
  priority-check: false
  extra: true
features:
  init-attrs: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadProjectFile(path))

	assert.Equal(t, "cpu", cfg.TopModule)
	assert.Equal(t, []string{"rtl/include", "rtl/common"}, cfg.IncludePaths)
	assert.Equal(t, "8", cfg.Defines["WIDTH"])
	assert.False(t, cfg.IsWarningEnabled(WarnPriorityCheck))
	assert.True(t, cfg.IsWarningEnabled(WarnExtra))
	assert.False(t, cfg.IsFeatureEnabled(FeatInitAttrs))
}

func TestLoadProjectFileRejectsUnknownNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slang.yaml")
	require.NoError(t, os.WriteFile(path, []byte("warnings:\n  no-such-warning: true\n"), 0644))

	cfg := NewConfig()
	err := cfg.LoadProjectFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-warning")
}

func TestParseDefine(t *testing.T) {
	name, value := ParseDefine("WIDTH=8")
	assert.Equal(t, "WIDTH", name)
	assert.Equal(t, "8", value)

	name, value = ParseDefine("SYNTHESIS")
	assert.Equal(t, "SYNTHESIS", name)
	assert.Equal(t, "1", value)
}
