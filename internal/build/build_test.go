package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
)

func writeSource(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+SourceExt), []byte(src), 0o644))
}

func TestBuildSingleModule(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main", "Float main() { return 1.0 + 2.0 }")

	res, err := New(dir, nil).Build("main")
	require.NoError(t, err)
	require.Len(t, res.Modules, 1)
	require.Equal(t, uint32(0), res.EntryModID)
	require.True(t, res.Modules["main"].Module.IsExecutable())
}

func TestBuildLinksForeignCall(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "util", "Int add(Int a, Int b) { return a + b }")
	writeSource(t, dir, "main", "import util\nFloat main() { let x = util:add(2, 3) ; return 0.0 }")

	res, err := New(dir, nil).Build("main")
	require.NoError(t, err)
	require.Len(t, res.Modules, 2)
	require.Equal(t, []string{"util", "main"}, res.Order)
	require.Equal(t, uint32(0), res.Modules["util"].ModuleID)
	require.Equal(t, uint32(1), res.Modules["main"].ModuleID)
}

func TestBuildDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main", "import a\nFloat main() { return 0.0 }")
	writeSource(t, dir, "a", "import main\nInt helper() { return 1 }")

	_, err := New(dir, nil).Build("main")
	require.Error(t, err)
	berr, ok := err.(*diagnostics.BuildError)
	require.True(t, ok)
	require.Equal(t, diagnostics.CyclicDependency, berr.Kind)
	require.Contains(t, berr.Message, "main -> a -> main")
}

func TestBuildFailsOnMissingModuleFile(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main", "import missing\nFloat main() { return 0.0 }")

	_, err := New(dir, nil).Build("main")
	require.Error(t, err)
	berr, ok := err.(*diagnostics.BuildError)
	require.True(t, ok)
	require.Equal(t, diagnostics.ModuleFileMissing, berr.Kind)
}

func TestBuildWritesArtifactAndMetadata(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main", "Float main() { return 1.0 }")

	_, err := New(dir, nil).Build("main")
	require.NoError(t, err)

	metaPath := filepath.Join(dir, CacheDirName, MetadataFileName)
	require.FileExists(t, metaPath)

	entries, err := os.ReadDir(filepath.Join(dir, CacheDirName, "modules"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, filepath.Ext(entries[0].Name()) == ".mvb")
}

type recordingReporter struct {
	compiling []string
	cached    []string
}

func (r *recordingReporter) Compiling(name string) { r.compiling = append(r.compiling, name) }
func (r *recordingReporter) Cached(name string)    { r.cached = append(r.cached, name) }
func (r *recordingReporter) Started()              {}
func (r *recordingReporter) Finished()             {}

func TestBuildReusesCacheWhenSourceUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main", "Float main() { return 1.0 }")

	first := &recordingReporter{}
	_, err := New(dir, first).Build("main")
	require.NoError(t, err)
	require.Equal(t, []string{"main"}, first.compiling)
	require.Empty(t, first.cached)

	second := &recordingReporter{}
	_, err = New(dir, second).Build("main")
	require.NoError(t, err)
	require.Empty(t, second.compiling)
	require.Equal(t, []string{"main"}, second.cached)
}

func TestBuildRecompilesWhenSourceChanges(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main", "Float main() { return 1.0 }")
	_, err := New(dir, nil).Build("main")
	require.NoError(t, err)

	writeSource(t, dir, "main", "Float main() { return 2.0 }")
	reporter := &recordingReporter{}
	res, err := New(dir, reporter).Build("main")
	require.NoError(t, err)
	require.Equal(t, []string{"main"}, reporter.compiling)
	require.True(t, res.Modules["main"].Module.IsExecutable())
}
