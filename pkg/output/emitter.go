// Package output renders the artifacts of a generation run: the per-package
// cgo sidecar files carrying the section-placed records, and the YAML
// manifest describing them.
package output

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
	"github.com/smith-xyz/golang-sectest-generator/pkg/record"
)

// GeneratedFileHeader is the first line of every sidecar, in the form the
// Go tooling recognizes for generated code.
const GeneratedFileHeader = "// Code generated by golang-sectest-generator. DO NOT EDIT."

// EmittedRecord is one record/name pair placed into the sections, together
// with everything the manifest needs to describe it.
type EmittedRecord struct {
	Annotation models.Annotation
	Symbols    record.Symbols

	// NameOffset is the byte offset of this entry's name within the
	// emitting compilation unit's contribution to the names section.
	// Offsets restart at zero for each annotated package.
	NameOffset int

	Bytes [record.Size]byte
}

// Sidecar is the generated file for one annotated package.
type Sidecar struct {
	PackageName string
	PackagePath string
	Dir         string
	Source      []byte
	Records     []EmittedRecord
}

// Emitter renders cgo sidecar files. The generated statics are compiled by
// cgo into the package object with the records and names placed in the
// configured linker sections; the annotated functions themselves are never
// touched.
type Emitter struct {
	logger   *slog.Logger
	sections record.Sections
	registry *record.Registry
}

// NewEmitter creates an emitter targeting the given section pair. The
// registry is shared across the whole run so symbol collisions are caught
// program-wide, not per package.
func NewEmitter(logger *slog.Logger, sections record.Sections, registry *record.Registry) *Emitter {
	return &Emitter{
		logger:   logger,
		sections: sections,
		registry: registry,
	}
}

// EmitPackage builds the sidecar for one package. Annotations must all
// belong to the same package and arrive in discovery order; records and
// names are emitted in that order so the two sections stay correlated.
func (e *Emitter) EmitPackage(annotations []models.Annotation) (*Sidecar, error) {
	if len(annotations) == 0 {
		return nil, fmt.Errorf("no annotations to emit")
	}

	sidecar := &Sidecar{
		PackageName: annotations[0].PackageName,
		PackagePath: annotations[0].PackagePath,
		Dir:         filepath.Dir(annotations[0].File),
	}

	nameOffset := 0
	for _, ann := range annotations {
		if ann.PackagePath != sidecar.PackagePath {
			return nil, fmt.Errorf("annotation %s belongs to %s, not %s", ann.QualifiedName(), ann.PackagePath, sidecar.PackagePath)
		}

		syms := record.DeriveSymbols(ann.QualifiedName(), ann.RecordName())
		if err := e.registry.Claim(syms, ann.QualifiedName()); err != nil {
			return nil, fmt.Errorf("emitting %s: %w", ann.QualifiedName(), err)
		}

		bytes, err := record.Encode(ann.RecordName(), ann.Config, nameOffset)
		if err != nil {
			return nil, fmt.Errorf("emitting %s (%s:%d): %w", ann.QualifiedName(), ann.File, ann.Line, err)
		}

		sidecar.Records = append(sidecar.Records, EmittedRecord{
			Annotation: ann,
			Symbols:    syms,
			NameOffset: nameOffset,
			Bytes:      bytes,
		})
		nameOffset += len(ann.RecordName())
	}

	source, err := e.renderSource(sidecar)
	if err != nil {
		return nil, err
	}
	sidecar.Source = source

	e.logger.Debug("rendered sidecar",
		"package", sidecar.PackagePath,
		"records", len(sidecar.Records),
		"bytes", len(sidecar.Source))
	return sidecar, nil
}

// renderSource renders the cgo source text for a sidecar.
func (e *Emitter) renderSource(sidecar *Sidecar) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", GeneratedFileHeader)
	fmt.Fprintf(&b, "//\n")
	fmt.Fprintf(&b, "// Security-test records for package %s.\n", sidecar.PackagePath)
	fmt.Fprintf(&b, "// Records section: %s  Names section: %s\n\n", e.sections.Records, e.sections.Names)
	fmt.Fprintf(&b, "package %s\n\n", sidecar.PackageName)

	b.WriteString("/*\n")
	for i, rec := range sidecar.Records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "// %s (%s:%d)\n", rec.Annotation.QualifiedName(), rec.Annotation.File, rec.Annotation.Line)

		// Records are 64-aligned so contributions from every object
		// concatenate on the scanner's 64-byte stride.
		fmt.Fprintf(&b, "__attribute__((used, aligned(64), section(%q)))\n", e.sections.Records)
		fmt.Fprintf(&b, "static const unsigned char %s[%d] = {\n", rec.Symbols.Record, record.Size)
		writeByteRows(&b, rec.Bytes[:])
		b.WriteString("};\n\n")

		name := rec.Annotation.RecordName()
		fmt.Fprintf(&b, "__attribute__((used, aligned(1), section(%q)))\n", e.sections.Names)
		fmt.Fprintf(&b, "static const unsigned char %s[%d] = {\n", rec.Symbols.Name, len(name))
		writeByteRows(&b, []byte(name))
		b.WriteString("};\n")
	}
	b.WriteString("*/\n")
	b.WriteString("import \"C\"\n")

	return []byte(b.String()), nil
}

// writeByteRows writes a byte slice as indented hex initializer rows.
func writeByteRows(b *strings.Builder, data []byte) {
	const perRow = 16
	for i := 0; i < len(data); i += perRow {
		end := i + perRow
		if end > len(data) {
			end = len(data)
		}
		b.WriteString("\t")
		for j := i; j < end; j++ {
			fmt.Fprintf(b, "0x%02x,", data[j])
			if j+1 < end {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}
}
