// Package build implements the Mluva module builder: it resolves a
// project's import DAG, detects cycles, hashes sources for change
// detection, links cross-module calls, and persists compiled artifacts
// under .cache/.
package build

import (
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/MikulasBar/mluva-sub000/internal/bytecode"
	"github.com/MikulasBar/mluva-sub000/internal/checker"
	"github.com/MikulasBar/mluva-sub000/internal/compiler"
	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
	"github.com/MikulasBar/mluva-sub000/internal/lexer"
	"github.com/MikulasBar/mluva-sub000/internal/module"
	"github.com/MikulasBar/mluva-sub000/internal/parser"
)

// CacheDirName is the project-relative directory holding build artifacts
// and metadata.
const CacheDirName = ".cache"

// MetadataFileName is the cache's metadata map, rewritten in full on every
// successful build.
const MetadataFileName = "modules.yaml"

// SourceExt is the Mluva source file extension.
const SourceExt = ".mv"

// BuildReporter announces per-module build progress; the core builder
// stays silent (and testable) with NoopReporter, while a CLI supplies a
// reporter that prints status lines.
type BuildReporter interface {
	Compiling(moduleName string)
	Cached(moduleName string)
	Started()
	Finished()
}

// NoopReporter implements BuildReporter with no output.
type NoopReporter struct{}

func (NoopReporter) Compiling(string) {}
func (NoopReporter) Cached(string)    {}
func (NoopReporter) Started()         {}
func (NoopReporter) Finished()        {}

// MetadataEntry is one source file's cached content hash.
type MetadataEntry struct {
	ContentHash string `yaml:"content_hash"`
}

// Metadata is the on-disk cache map: source_path (forward-slash normalized,
// relative to the project root) -> its last-seen content hash.
type Metadata map[string]MetadataEntry

// CompiledModule is one module's build result: its assigned module_id (its
// position in the topological load order), the compiled module itself, and
// its exported signature (for importers' type checking).
type CompiledModule struct {
	ModuleID  uint32
	Module    *module.Module
	Signature checker.ModuleSignature
}

// Result is the outcome of building a project: every module reachable from
// the root, keyed by name, plus which one is the entry point.
type Result struct {
	Modules    map[string]*CompiledModule
	Order      []string // topological load order; Order[moduleID] == name
	EntryName  string
	EntryModID uint32
}

// Builder drives the recursive compile/link/cache algorithm over one
// project root.
type Builder struct {
	root      string
	reporter  BuildReporter
	metadata  Metadata
	compiled  map[string]*CompiledModule
	ancestors []string
	order     []string
}

// New returns a Builder rooted at projectDir.
func New(projectDir string, reporter BuildReporter) *Builder {
	if reporter == nil {
		reporter = NoopReporter{}
	}
	return &Builder{root: projectDir, reporter: reporter, compiled: map[string]*CompiledModule{}}
}

// Build walks the import closure of rootModule, compiling changed modules
// and writing artifacts, and returns the full Result.
func (b *Builder) Build(rootModule string) (*Result, error) {
	b.reporter.Started()
	defer b.reporter.Finished()

	if err := b.loadMetadata(); err != nil {
		return nil, err
	}
	if err := b.compile(rootModule); err != nil {
		return nil, err
	}
	if err := b.saveMetadata(); err != nil {
		return nil, err
	}

	entry := b.compiled[rootModule]
	return &Result{
		Modules:    b.compiled,
		Order:      b.order,
		EntryName:  rootModule,
		EntryModID: entry.ModuleID,
	}, nil
}

func (b *Builder) compile(name string) error {
	if _, ok := b.compiled[name]; ok {
		return nil
	}
	for i, a := range b.ancestors {
		if a == name {
			cycle := append(append([]string{}, b.ancestors[i:]...), name)
			return diagnostics.NewBuildError(diagnostics.CyclicDependency, nil, "%s", strings.Join(cycle, " -> "))
		}
	}
	b.ancestors = append(b.ancestors, name)
	defer func() { b.ancestors = b.ancestors[:len(b.ancestors)-1] }()

	sourcePath := b.sourcePath(name)
	srcBytes, err := os.ReadFile(sourcePath)
	if err != nil {
		return diagnostics.NewBuildError(diagnostics.ModuleFileMissing, err, "module %q: missing source file %s", name, sourcePath)
	}
	src := string(srcBytes)

	toks, err := lexer.New(src, 0).Lex()
	if err != nil {
		return err
	}
	file, err := parser.Parse(toks)
	if err != nil {
		return err
	}

	for _, imp := range file.Imports {
		if _, err := os.Stat(b.sourcePath(imp.Name)); err != nil {
			return diagnostics.NewBuildError(diagnostics.ModuleFileMissing, err, "module %q imports %q, but %s is missing", name, imp.Name, b.sourcePath(imp.Name))
		}
		if err := b.compile(imp.Name); err != nil {
			return err
		}
	}

	imports := map[string]checker.ModuleSignature{}
	for _, imp := range file.Imports {
		imports[imp.Name] = b.compiled[imp.Name].Signature
	}
	sig, err := checker.Check(file, imports)
	if err != nil {
		return err
	}

	hash := contentHash(srcBytes)
	normPath := normalizeSourcePath(name)

	var m *module.Module
	if entry, ok := b.metadata[normPath]; ok && entry.ContentHash == hash {
		if cached, err := b.loadArtifact(name); err == nil {
			m = cached
			b.reporter.Cached(name)
		}
	}
	if m == nil {
		b.reporter.Compiling(name)
		resolver := func(modName, fnName string) (uint32, uint32) {
			dep := b.compiled[modName]
			return dep.ModuleID, dep.Module.FunctionMap[fnName]
		}
		m = compiler.CompileFile(file, resolver)
		if err := b.writeArtifact(name, m); err != nil {
			return err
		}
		if b.metadata == nil {
			b.metadata = Metadata{}
		}
		b.metadata[normPath] = MetadataEntry{ContentHash: hash}
	}

	moduleID := uint32(len(b.order))
	b.order = append(b.order, name)
	b.compiled[name] = &CompiledModule{ModuleID: moduleID, Module: m, Signature: *sig}
	return nil
}

func (b *Builder) sourcePath(name string) string {
	return filepath.Join(b.root, name+SourceExt)
}

func normalizeSourcePath(name string) string {
	return filepath.ToSlash(name + SourceExt)
}

func contentHash(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

func (b *Builder) artifactPath(name string) string {
	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(normalizeSourcePath(name)))
	return filepath.Join(b.root, CacheDirName, "modules", encoded+".mvb")
}

func (b *Builder) loadArtifact(name string) (*module.Module, error) {
	data, err := os.ReadFile(b.artifactPath(name))
	if err != nil {
		return nil, err
	}
	return bytecode.Decode(data)
}

// writeArtifact stages the encoded module to a uniquely-named scratch file
// before renaming it into place, so a half-written .mvb is never observed
// at its final path even though atomicity is not required by policy.
func (b *Builder) writeArtifact(name string, m *module.Module) error {
	data, err := bytecode.Encode(m)
	if err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "encoding module %q", name)
	}
	finalPath := b.artifactPath(name)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "creating cache directory")
	}
	scratchDir := filepath.Join(b.root, CacheDirName, "tmp", uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "creating scratch directory")
	}
	defer os.RemoveAll(scratchDir)
	scratchPath := filepath.Join(scratchDir, filepath.Base(finalPath))
	if err := os.WriteFile(scratchPath, data, 0o644); err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "writing scratch artifact")
	}
	if err := os.Rename(scratchPath, finalPath); err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "renaming artifact into place")
	}
	return nil
}

func (b *Builder) loadMetadata() error {
	path := filepath.Join(b.root, CacheDirName, MetadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			b.metadata = Metadata{}
			return nil
		}
		return diagnostics.NewBuildError(diagnostics.IoError, err, "reading cache metadata")
	}
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "parsing cache metadata")
	}
	b.metadata = m
	return nil
}

func (b *Builder) saveMetadata() error {
	dir := filepath.Join(b.root, CacheDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "creating cache directory")
	}
	data, err := yaml.Marshal(b.metadata)
	if err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "marshaling cache metadata")
	}
	path := filepath.Join(dir, MetadataFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return diagnostics.NewBuildError(diagnostics.IoError, err, "writing cache metadata")
	}
	return nil
}
