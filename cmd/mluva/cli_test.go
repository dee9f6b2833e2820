package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func withTempProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(cwd)) })
	return dir
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["init"])
	require.True(t, names["build"])
	require.True(t, names["run"])
	require.True(t, names["uninit"])
}

func TestInitThenBuildThenRun(t *testing.T) {
	withTempProject(t)

	require.NoError(t, initCmd.RunE(initCmd, nil))
	require.Error(t, initCmd.RunE(initCmd, nil), "re-running init on an initialized project must fail")

	require.NoError(t, buildCmd.RunE(buildCmd, nil))
	require.NoError(t, runCmd.RunE(runCmd, nil))
}
