package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewHasDefaults(t *testing.T) {
	c := New("myproj")
	require.Equal(t, "myproj", c.ProjectName)
	require.Equal(t, DefaultRootModule, c.RootModule)
	require.Equal(t, SchemaVersion, c.Schema)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c := New("roundtrip")
	c.RootModule = "app"
	require.NoError(t, c.Save(dir))
	require.True(t, Exists(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "roundtrip", loaded.ProjectName)
	require.Equal(t, "app", loaded.RootModule)
}

func TestLoadDefaultsMissingRootModule(t *testing.T) {
	dir := t.TempDir()
	c := &Config{ProjectName: "bare"}
	require.NoError(t, c.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, DefaultRootModule, loaded.RootModule)
}

func TestLoadRejectsFutureSchema(t *testing.T) {
	dir := t.TempDir()
	c := &Config{ProjectName: "future", RootModule: "main", Schema: "99.0.0"}
	require.NoError(t, c.Save(dir))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
}

func TestExistsFalseForFreshDir(t *testing.T) {
	dir := t.TempDir()
	require.False(t, Exists(dir))
}
