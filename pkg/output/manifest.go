package output

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
	"github.com/smith-xyz/golang-sectest-generator/pkg/record"
	"github.com/smith-xyz/golang-sectest-generator/pkg/version"
)

// ManifestVersion identifies the manifest document layout.
const ManifestVersion = "1"

// BuildManifest assembles the manifest document for one generation run from
// the emitted sidecars. Entry order follows sidecar order, which discovery
// keeps deterministic.
func BuildManifest(module string, platform record.Platform, sections record.Sections, sidecarFileName string, sidecars []*Sidecar) models.Manifest {
	manifest := models.Manifest{
		ManifestVersion: ManifestVersion,
		CreationInfo: models.CreationInfo{
			RunID:       uuid.NewString(),
			Created:     time.Now().UTC().Format(time.RFC3339),
			ToolName:    "golang-sectest-generator",
			ToolVersion: version.GetVersion(),
		},
		Target: models.TargetInfo{
			Module:          module,
			Platform:        string(platform),
			RecordsSection:  sections.Records,
			NamesSection:    sections.Names,
			SidecarFileName: sidecarFileName,
		},
	}

	for _, sidecar := range sidecars {
		for _, rec := range sidecar.Records {
			manifest.Records = append(manifest.Records, models.ManifestEntry{
				QualifiedName: rec.Annotation.QualifiedName(),
				RecordName:    rec.Annotation.RecordName(),
				Location:      fmt.Sprintf("%s:%d", rec.Annotation.File, rec.Annotation.Line),
				RecordSymbol:  rec.Symbols.Record,
				NameSymbol:    rec.Symbols.Name,
				NameOffset:    rec.NameOffset,
				ThreatLevel:   rec.Annotation.Config.ThreatLevel.String(),
				TestClasses:   rec.Annotation.Config.TestClasses(),
				Config:        rec.Annotation.Config,
				RecordDigest:  fmt.Sprintf("%016x", xxh3.Hash(rec.Bytes[:])),
			})
		}
	}

	return manifest
}

// WriteManifest encodes a manifest as YAML.
func WriteManifest(w io.Writer, manifest models.Manifest) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return encoder.Close()
}
