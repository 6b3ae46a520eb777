package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/smith-xyz/golang-sectest-generator/pkg/generator"
	"github.com/smith-xyz/golang-sectest-generator/pkg/output"
	"github.com/smith-xyz/golang-sectest-generator/pkg/utils"
	"github.com/smith-xyz/golang-sectest-generator/pkg/version"
)

func main() {
	var (
		packagePath = flag.String("package", ".", "Go module directory to scan for //sectest:probe directives")
		target      = flag.String("target", "", "Target platform for section names (linux, darwin, windows; default: host OS)")
		manifest    = flag.String("manifest", "", "Write a YAML manifest describing the emitted records to this path")
		directive   = flag.String("directive", "", "Override the directive name (default from config: sectest:probe)")
		excludeDirs = flag.String("exclude", "", "Comma-separated list of additional directory names to skip")
		dryRun      = flag.Bool("dry-run", false, "Render sidecars to stdout instead of writing them")
		strict      = flag.Bool("strict", false, "Fail on directives containing unrecognized tokens")
		verbose     = flag.Bool("v", false, "Verbose output")
		showVersion = flag.Bool("version", false, "Show version information and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetVersionWithCommit())
		os.Exit(0)
	}

	summary, err := generator.Generate(generator.Options{
		PackagePath:  *packagePath,
		Target:       *target,
		ManifestPath: *manifest,
		Directive:    *directive,
		ExcludeDirs:  utils.ParseCommaDelimited(*excludeDirs),
		DryRun:       *dryRun,
		Strict:       *strict,
		Verbose:      *verbose,
	})
	if err != nil {
		log.Fatalf("Record generation failed: %v", err)
	}

	if *dryRun {
		if err := printDryRun(summary); err != nil {
			log.Fatalf("Failed to write dry-run output: %v", err)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Emitted %d security-test records across %d packages (sections %s / %s)\n",
		summary.RecordCount, len(summary.Sidecars), summary.Sections.Records, summary.Sections.Names)
}

// printDryRun writes every rendered sidecar and the manifest to stdout.
func printDryRun(summary *generator.Summary) error {
	for _, sidecar := range summary.Sidecars {
		fmt.Printf("--- %s (%s)\n", sidecar.PackagePath, sidecar.PackageName)
		if _, err := os.Stdout.Write(sidecar.Source); err != nil {
			return err
		}
		fmt.Println()
	}

	fmt.Println("--- manifest")
	return output.WriteManifest(os.Stdout, summary.Manifest)
}
