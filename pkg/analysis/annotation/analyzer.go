// Package annotationanalysis discovers security-test directives on function
// declarations in a target module.
package annotationanalysis

import (
	"fmt"
	"go/ast"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"

	"github.com/smith-xyz/golang-sectest-generator/pkg/annotation"
	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
	"github.com/smith-xyz/golang-sectest-generator/pkg/utils"
)

// Analyzer walks a module's syntax trees looking for annotated functions.
type Analyzer struct {
	logger  *slog.Logger
	verbose bool
	config  *Config
}

// Config holds configuration for annotation discovery.
type Config struct {
	// Directive is the directive name without the leading "//",
	// e.g. "sectest:probe".
	Directive string

	// SidecarFileName is skipped during discovery so re-running the
	// generator never annotates its own output.
	SidecarFileName string

	// ExcludeDirs are directory names whose files are skipped.
	ExcludeDirs []string

	Verbose bool
}

// NewAnalyzer creates a new annotation analyzer.
func NewAnalyzer(logger *slog.Logger, config *Config) *Analyzer {
	if config == nil {
		config = &Config{}
	}
	if config.Directive == "" {
		config.Directive = "sectest:probe"
	}
	return &Analyzer{
		logger:  logger,
		verbose: config.Verbose,
		config:  config,
	}
}

// AnalyzeModule loads every package under dir and returns the annotated
// functions, ordered by package path, file and line.
func (a *Analyzer) AnalyzeModule(dir string) ([]models.Annotation, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedSyntax | packages.NeedTypes,
		Dir: dir,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("failed to load packages from %s: %w", dir, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("errors encountered during package loading")
	}

	a.logger.Debug("loaded packages for annotation discovery", "dir", dir, "count", len(pkgs))

	var annotations []models.Annotation
	for _, pkg := range pkgs {
		annotations = append(annotations, a.analyzePackage(pkg)...)
	}

	sort.Slice(annotations, func(i, j int) bool {
		if annotations[i].PackagePath != annotations[j].PackagePath {
			return annotations[i].PackagePath < annotations[j].PackagePath
		}
		if annotations[i].File != annotations[j].File {
			return annotations[i].File < annotations[j].File
		}
		return annotations[i].Line < annotations[j].Line
	})

	a.logger.Debug("annotation discovery complete", "annotated_functions", len(annotations))
	return annotations, nil
}

// analyzePackage extracts the annotations from one loaded package.
func (a *Analyzer) analyzePackage(pkg *packages.Package) []models.Annotation {
	var annotations []models.Annotation

	for _, file := range pkg.Syntax {
		filename := pkg.Fset.Position(file.Pos()).Filename
		if a.config.SidecarFileName != "" && filepath.Base(filename) == a.config.SidecarFileName {
			continue
		}
		if a.excludedPath(filename) {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}

			directive, found := a.extractDirective(fn.Doc)
			if !found {
				continue
			}

			result := annotation.Parse(directive)
			pos := pkg.Fset.Position(fn.Pos())

			ann := models.Annotation{
				FunctionName:  fn.Name.Name,
				Receiver:      receiverTypeName(fn.Recv),
				PackagePath:   pkg.PkgPath,
				PackageName:   pkg.Name,
				File:          pos.Filename,
				Line:          pos.Line,
				Directive:     directive,
				Config:        result.Config,
				UnknownTokens: result.Unknown,
			}

			if len(result.Unknown) > 0 {
				a.logger.Warn("directive contains unrecognized tokens",
					"function", ann.QualifiedName(),
					"location", fmt.Sprintf("%s:%d", pos.Filename, pos.Line),
					"tokens", strings.Join(result.Unknown, ","))
			}
			a.logger.Debug("found annotated function",
				"function", ann.QualifiedName(),
				"threat_level", ann.Config.ThreatLevel.String(),
				"test_classes", strings.Join(ann.Config.TestClasses(), ","))

			annotations = append(annotations, ann)
		}
	}

	return annotations
}

// excludedPath reports whether any path component of filename is an
// excluded directory name.
func (a *Analyzer) excludedPath(filename string) bool {
	if len(a.config.ExcludeDirs) == 0 {
		return false
	}
	for _, component := range strings.Split(filepath.ToSlash(filename), "/") {
		for _, dir := range a.config.ExcludeDirs {
			if component == dir {
				return true
			}
		}
	}
	return false
}

// extractDirective scans a doc comment group for the configured directive and
// returns the configuration text after it. Directive comments follow the
// Go convention: no space between "//" and the directive name.
func (a *Analyzer) extractDirective(doc *ast.CommentGroup) (string, bool) {
	if doc == nil {
		return "", false
	}

	prefix := "//" + a.config.Directive
	for _, comment := range doc.List {
		text := comment.Text
		if !strings.HasPrefix(text, prefix) {
			continue
		}
		rest := text[len(prefix):]
		// Reject directives whose name merely starts with ours,
		// e.g. "//sectest:probes".
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			continue
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// receiverTypeName extracts the bare receiver type name from a method
// declaration, unwrapping pointers and type parameters.
func receiverTypeName(recv *ast.FieldList) string {
	if recv == nil || len(recv.List) == 0 {
		return ""
	}

	typ := recv.List[0].Type
	for {
		switch t := typ.(type) {
		case *ast.StarExpr:
			typ = t.X
		case *ast.IndexExpr:
			typ = t.X
		case *ast.IndexListExpr:
			typ = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}

// ModulePath resolves the module path for the target directory. It walks up
// from dir parsing go.mod files and falls back to 'go list -m'.
func (a *Analyzer) ModulePath(dir string) string {
	current, err := filepath.Abs(dir)
	if err != nil {
		current = dir
	}

	for {
		goModPath := filepath.Join(current, "go.mod")
		if content, err := os.ReadFile(goModPath); err == nil {
			parsed, err := modfile.Parse(goModPath, content, nil)
			if err == nil && parsed.Module != nil {
				return parsed.Module.Mod.Path
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if module, err := utils.GetCurrentGoModule(); err == nil {
		return module
	}
	return ""
}
