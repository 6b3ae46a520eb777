package integration

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/smith-xyz/golang-sectest-generator/pkg/generator"
	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
	"github.com/smith-xyz/golang-sectest-generator/pkg/output"
	"github.com/smith-xyz/golang-sectest-generator/pkg/record"
)

// Integration tests drive the full pipeline against the examples/webapp
// module: discovery, emission, sidecar/manifest writing.

func TestWebappGeneration(t *testing.T) {
	dir := copyWebappFixture(t)
	manifestPath := filepath.Join(dir, "sectest-manifest.yaml")

	summary, err := generator.Generate(generator.Options{
		PackagePath:  dir,
		Target:       "linux",
		ManifestPath: manifestPath,
		Verbose:      true,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if summary.Module != "example.com/webapp" {
		t.Errorf("module = %q, want example.com/webapp", summary.Module)
	}
	if summary.RecordCount != 4 {
		t.Fatalf("record count = %d, want 4", summary.RecordCount)
	}
	if len(summary.Sidecars) != 2 {
		t.Fatalf("sidecar count = %d, want 2 (auth, store)", len(summary.Sidecars))
	}

	// Sidecars land beside the annotated sources, never in main.
	for _, rel := range []string{"auth/zz_sectest_records.go", "store/zz_sectest_records.go"} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("missing sidecar %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "zz_sectest_records.go")); !os.IsNotExist(err) {
		t.Error("unexpected sidecar in unannotated main package")
	}

	verifyAuthRecords(t, summary)
	verifyManifest(t, manifestPath, summary)
}

// verifyAuthRecords checks the emitted bytes for the auth package against
// the wire format, field by field.
func verifyAuthRecords(t *testing.T, summary *generator.Summary) {
	t.Helper()

	var auth *output.Sidecar
	for _, sidecar := range summary.Sidecars {
		if sidecar.PackagePath == "example.com/webapp/auth" {
			auth = sidecar
		}
	}
	if auth == nil {
		t.Fatal("auth sidecar not found")
	}
	records := auth.Records
	if len(records) != 3 {
		t.Fatalf("auth has %d records, want 3", len(records))
	}

	// Declaration order in auth.go: Login, Logout, RotateSessions.
	login := records[0]
	if login.Annotation.RecordName() != "Login" {
		t.Fatalf("first auth record is %q, want Login", login.Annotation.RecordName())
	}

	wantMagic := []byte{0xBE, 0xBA, 0xFE, 0xCA, 0xEF, 0xBE, 0xAD, 0xDE}
	if !bytes.Equal(login.Bytes[:8], wantMagic) {
		t.Errorf("magic = % X, want % X", login.Bytes[:8], wantMagic)
	}

	decoded, err := record.Decode(login.Bytes[:])
	if err != nil {
		t.Fatalf("Login record does not decode: %v", err)
	}
	want := models.SecurityConfig{
		SQLInjection: true,
		TimingAttack: true,
		ThreatLevel:  models.ThreatCritical,
	}
	if decoded.Config != want {
		t.Errorf("Login config = %+v, want %+v", decoded.Config, want)
	}
	if decoded.NameLength != len("Login") {
		t.Errorf("Login name length = %d, want %d", decoded.NameLength, len("Login"))
	}

	// Empty directive degrades to defaults: all flags 0, medium.
	logout := records[1]
	if logout.Annotation.RecordName() != "Logout" {
		t.Fatalf("second auth record is %q, want Logout", logout.Annotation.RecordName())
	}
	if logout.Bytes[13] != 1 {
		t.Errorf("Logout threat byte = %d, want 1 (medium)", logout.Bytes[13])
	}
	for off := 9; off <= 12; off++ {
		if logout.Bytes[off] != 0 {
			t.Errorf("Logout flag byte %d = %d, want 0", off, logout.Bytes[off])
		}
	}

	// Name offsets accumulate within the package contribution.
	wantOffsets := []int{0, len("Login"), len("Login") + len("Logout")}
	for i, rec := range records {
		if rec.NameOffset != wantOffsets[i] {
			t.Errorf("record %d name offset = %d, want %d", i, rec.NameOffset, wantOffsets[i])
		}
	}
}

func verifyManifest(t *testing.T, path string, summary *generator.Summary) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("manifest not readable: %v", err)
	}

	var manifest models.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest is not valid YAML: %v", err)
	}

	if manifest.Target.Module != "example.com/webapp" {
		t.Errorf("manifest module = %q", manifest.Target.Module)
	}
	if manifest.Target.RecordsSection != ".security_tests" || manifest.Target.NamesSection != ".security_names" {
		t.Errorf("manifest sections = %s/%s", manifest.Target.RecordsSection, manifest.Target.NamesSection)
	}
	if len(manifest.Records) != summary.RecordCount {
		t.Errorf("manifest has %d records, want %d", len(manifest.Records), summary.RecordCount)
	}

	var methodEntry *models.ManifestEntry
	for i := range manifest.Records {
		if manifest.Records[i].RecordName == "Cache.Put" {
			methodEntry = &manifest.Records[i]
		}
	}
	if methodEntry == nil {
		t.Fatal("Cache.Put entry missing from manifest")
	}
	if methodEntry.QualifiedName != "example.com/webapp/store.(Cache).Put" {
		t.Errorf("Cache.Put qualified name = %q", methodEntry.QualifiedName)
	}
	if methodEntry.ThreatLevel != "low" {
		t.Errorf("Cache.Put threat level = %q, want low", methodEntry.ThreatLevel)
	}
}

func TestWebappDryRunIsDeterministic(t *testing.T) {
	dir := copyWebappFixture(t)

	first, err := generator.Generate(generator.Options{PackagePath: dir, Target: "linux", DryRun: true})
	if err != nil {
		t.Fatalf("first dry run failed: %v", err)
	}
	second, err := generator.Generate(generator.Options{PackagePath: dir, Target: "linux", DryRun: true})
	if err != nil {
		t.Fatalf("second dry run failed: %v", err)
	}

	if len(first.Sidecars) != len(second.Sidecars) {
		t.Fatalf("sidecar counts differ: %d vs %d", len(first.Sidecars), len(second.Sidecars))
	}
	for i := range first.Sidecars {
		if !bytes.Equal(first.Sidecars[i].Source, second.Sidecars[i].Source) {
			t.Errorf("sidecar %s differs across runs", first.Sidecars[i].PackagePath)
		}
	}

	if len(first.FilesWritten) != 0 {
		t.Errorf("dry run wrote files: %v", first.FilesWritten)
	}
}

func TestWebappDarwinSections(t *testing.T) {
	dir := copyWebappFixture(t)

	summary, err := generator.Generate(generator.Options{PackagePath: dir, Target: "darwin", DryRun: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if summary.Sections.Records != "__DATA,__sectests" {
		t.Errorf("records section = %q", summary.Sections.Records)
	}
	for _, sidecar := range summary.Sidecars {
		if !bytes.Contains(sidecar.Source, []byte(`section("__DATA,__sectests")`)) {
			t.Errorf("sidecar %s missing darwin records section", sidecar.PackagePath)
		}
		if !bytes.Contains(sidecar.Source, []byte(`section("__DATA,__secnames")`)) {
			t.Errorf("sidecar %s missing darwin names section", sidecar.PackagePath)
		}
	}
}

// copyWebappFixture copies examples/webapp into a temp dir so generation
// never dirties the checked-in example.
func copyWebappFixture(t *testing.T) string {
	t.Helper()

	src, err := filepath.Abs(filepath.Join("..", "..", "examples", "webapp"))
	if err != nil {
		t.Fatalf("failed to resolve fixture path: %v", err)
	}

	dst := t.TempDir()
	err = filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0750)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0600)
	})
	if err != nil {
		t.Fatalf("failed to copy fixture: %v", err)
	}
	return dst
}
