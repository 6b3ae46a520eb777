// Package generator orchestrates a generation run: discover annotated
// functions, render per-package sidecars, write them beside the annotated
// sources, and assemble the manifest.
package generator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	annotationanalysis "github.com/smith-xyz/golang-sectest-generator/pkg/analysis/annotation"
	"github.com/smith-xyz/golang-sectest-generator/pkg/config"
	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
	"github.com/smith-xyz/golang-sectest-generator/pkg/output"
	"github.com/smith-xyz/golang-sectest-generator/pkg/record"
	"github.com/smith-xyz/golang-sectest-generator/pkg/utils"
)

// Options control one generation run.
type Options struct {
	// PackagePath is the target module directory. Empty means ".".
	PackagePath string

	// Target is the platform the sections are emitted for
	// (linux, darwin, windows). Empty means the host platform.
	Target string

	// ManifestPath, when non-empty, is where the YAML manifest is written.
	ManifestPath string

	// Directive overrides the configured directive name.
	Directive string

	// ExcludeDirs are directory names skipped during discovery, in
	// addition to the configured ones.
	ExcludeDirs []string

	// DryRun renders everything but writes nothing.
	DryRun bool

	// Strict fails the run when a directive contains unrecognized tokens.
	Strict bool

	Verbose bool
}

// Summary reports what a generation run produced.
type Summary struct {
	Module       string
	Platform     record.Platform
	Sections     record.Sections
	Sidecars     []*output.Sidecar
	Manifest     models.Manifest
	RecordCount  int
	FilesWritten []string
}

// Generate runs the full pipeline for one target module.
func Generate(opts Options) (*Summary, error) {
	logger := newLogger(opts.Verbose)

	cfg, err := config.DefaultConfig()
	if err != nil {
		// Fallback to a basic config if default config fails to load
		cfg = &config.Config{}
	}

	targetDir := opts.PackagePath
	if targetDir == "" {
		targetDir = "."
	}
	if !utils.DirectoryExists(targetDir) {
		return nil, fmt.Errorf("target %s is not a directory", targetDir)
	}

	platform, err := resolvePlatform(opts.Target)
	if err != nil {
		return nil, err
	}
	sections, err := cfg.SectionsFor(platform)
	if err != nil {
		return nil, err
	}

	directive := opts.Directive
	if directive == "" {
		directive = cfg.Directive()
	}
	strict := opts.Strict || cfg.Generator.Strict

	analyzer := annotationanalysis.NewAnalyzer(logger, &annotationanalysis.Config{
		Directive:       directive,
		SidecarFileName: cfg.SidecarFileName(),
		ExcludeDirs:     append(cfg.Generator.ExcludeDirs, opts.ExcludeDirs...),
		Verbose:         opts.Verbose,
	})

	instr := utils.NewInstrumentation(logger, opts.Verbose)
	tracker := instr.NewPhaseTracker("generate")

	tracker.StartPhase("discovery")
	annotations, err := analyzer.AnalyzeModule(targetDir)
	if err != nil {
		return nil, fmt.Errorf("annotation discovery failed: %w", err)
	}
	tracker.EndPhase()

	if strict {
		if err := rejectUnknownTokens(annotations); err != nil {
			return nil, err
		}
	}

	summary := &Summary{
		Module:   analyzer.ModulePath(targetDir),
		Platform: platform,
		Sections: sections,
	}

	if len(annotations) == 0 {
		utils.VerboseLogf(opts.Verbose, "No annotated functions found under %s\n", targetDir)
		summary.Manifest = output.BuildManifest(summary.Module, platform, sections, cfg.SidecarFileName(), nil)
		tracker.Complete(0)
		return summary, nil
	}

	tracker.StartPhase("emission")
	sidecars, err := emitSidecars(logger, sections, groupByPackage(annotations))
	if err != nil {
		return nil, err
	}
	tracker.EndPhase()
	summary.Sidecars = sidecars

	for _, sidecar := range sidecars {
		summary.RecordCount += len(sidecar.Records)
	}

	if !opts.DryRun {
		tracker.StartPhase("write")
		written, err := writeSidecars(sidecars, cfg.SidecarFileName(), opts.Verbose)
		if err != nil {
			return nil, err
		}
		tracker.EndPhase()
		summary.FilesWritten = written
	}

	summary.Manifest = output.BuildManifest(summary.Module, platform, sections, cfg.SidecarFileName(), sidecars)

	if opts.ManifestPath != "" && !opts.DryRun {
		if err := writeManifestFile(opts.ManifestPath, summary.Manifest); err != nil {
			return nil, err
		}
		summary.FilesWritten = append(summary.FilesWritten, opts.ManifestPath)
		utils.VerboseLogf(opts.Verbose, "Manifest written to: %s\n", opts.ManifestPath)
	}

	tracker.Complete(summary.RecordCount)
	return summary, nil
}

// emitSidecars renders one sidecar per annotated package. Packages are
// independent of each other, so they render concurrently; record order
// within a package is fixed by discovery order.
func emitSidecars(logger *slog.Logger, sections record.Sections, packages [][]models.Annotation) ([]*output.Sidecar, error) {
	registry := record.NewRegistry()
	emitter := output.NewEmitter(logger, sections, registry)

	var (
		mu       sync.Mutex
		sidecars []*output.Sidecar
	)

	var g errgroup.Group
	for _, anns := range packages {
		anns := anns
		g.Go(func() error {
			sidecar, err := emitter.EmitPackage(anns)
			if err != nil {
				return err
			}
			mu.Lock()
			sidecars = append(sidecars, sidecar)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(sidecars, func(i, j int) bool {
		return sidecars[i].PackagePath < sidecars[j].PackagePath
	})
	return sidecars, nil
}

// groupByPackage splits discovery output into per-package slices, keeping
// discovery order inside each package.
func groupByPackage(annotations []models.Annotation) [][]models.Annotation {
	index := make(map[string]int)
	var groups [][]models.Annotation
	for _, ann := range annotations {
		i, ok := index[ann.PackagePath]
		if !ok {
			i = len(groups)
			index[ann.PackagePath] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ann)
	}
	return groups
}

// writeSidecars writes each rendered sidecar into its package directory.
func writeSidecars(sidecars []*output.Sidecar, fileName string, verbose bool) ([]string, error) {
	var written []string
	for _, sidecar := range sidecars {
		dir := sidecar.Dir
		if dir == "" && len(sidecar.Records) > 0 {
			dir = filepath.Dir(sidecar.Records[0].Annotation.File)
		}
		if dir == "" {
			return nil, fmt.Errorf("cannot determine directory for package %s", sidecar.PackagePath)
		}

		path := filepath.Join(dir, fileName)
		file, err := utils.SafeCreateFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create sidecar %s: %w", path, err)
		}
		if _, err := file.Write(sidecar.Source); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write sidecar %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("failed to close sidecar %s: %w", path, err)
		}

		utils.VerboseLogf(verbose, "Sidecar written to: %s (%d records)\n", path, len(sidecar.Records))
		written = append(written, path)
	}
	return written, nil
}

// writeManifestFile writes the manifest document to path.
func writeManifestFile(path string, manifest models.Manifest) error {
	file, err := utils.SafeCreateFile(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest %s: %w", path, err)
	}
	defer file.Close()

	if err := output.WriteManifest(file, manifest); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// rejectUnknownTokens enforces strict mode over discovery output.
func rejectUnknownTokens(annotations []models.Annotation) error {
	for _, ann := range annotations {
		if len(ann.UnknownTokens) > 0 {
			return fmt.Errorf("strict mode: directive on %s (%s:%d) contains unrecognized tokens: %s",
				ann.QualifiedName(), ann.File, ann.Line, strings.Join(ann.UnknownTokens, ", "))
		}
	}
	return nil
}

// resolvePlatform maps the -target flag to a platform, defaulting to the
// host OS.
func resolvePlatform(target string) (record.Platform, error) {
	if target == "" {
		target = runtime.GOOS
	}
	platform, err := record.ParsePlatform(target)
	if err != nil {
		return "", fmt.Errorf("cannot emit records for %s: %w", target, err)
	}
	return platform, nil
}

// newLogger creates the run logger. It writes to stderr so dry-run output on
// stdout stays clean.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
