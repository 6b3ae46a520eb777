package output

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
	"github.com/smith-xyz/golang-sectest-generator/pkg/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSections(t *testing.T) record.Sections {
	t.Helper()
	sections, err := record.SectionsFor(record.PlatformLinux)
	if err != nil {
		t.Fatalf("SectionsFor failed: %v", err)
	}
	return sections
}

func testAnnotation(name string, cfg models.SecurityConfig) models.Annotation {
	return models.Annotation{
		FunctionName: name,
		PackagePath:  "example.com/webapp/auth",
		PackageName:  "auth",
		File:         "/src/webapp/auth/auth.go",
		Line:         10,
		Config:       cfg,
	}
}

func TestEmitPackage(t *testing.T) {
	emitter := NewEmitter(testLogger(), testSections(t), record.NewRegistry())

	anns := []models.Annotation{
		testAnnotation("login", models.SecurityConfig{SQLInjection: true, TimingAttack: true, ThreatLevel: models.ThreatCritical}),
		testAnnotation("logout", models.SecurityConfig{ThreatLevel: models.ThreatMedium}),
		testAnnotation("resetPassword", models.SecurityConfig{RaceCondition: true, ThreatLevel: models.ThreatHigh}),
	}

	sidecar, err := emitter.EmitPackage(anns)
	if err != nil {
		t.Fatalf("EmitPackage failed: %v", err)
	}

	if sidecar.PackageName != "auth" {
		t.Errorf("package name = %q, want %q", sidecar.PackageName, "auth")
	}
	if len(sidecar.Records) != 3 {
		t.Fatalf("emitted %d records, want 3", len(sidecar.Records))
	}

	// Name offsets accumulate in emission order.
	wantOffsets := []int{0, len("login"), len("login") + len("logout")}
	for i, rec := range sidecar.Records {
		if rec.NameOffset != wantOffsets[i] {
			t.Errorf("record %d name offset = %d, want %d", i, rec.NameOffset, wantOffsets[i])
		}

		decoded, err := record.Decode(rec.Bytes[:])
		if err != nil {
			t.Fatalf("record %d does not decode: %v", i, err)
		}
		if decoded.Config != anns[i].Config {
			t.Errorf("record %d config = %+v, want %+v", i, decoded.Config, anns[i].Config)
		}
		if decoded.NameLength != len(anns[i].RecordName()) {
			t.Errorf("record %d name length = %d, want %d", i, decoded.NameLength, len(anns[i].RecordName()))
		}
	}
}

func TestEmitPackageSource(t *testing.T) {
	emitter := NewEmitter(testLogger(), testSections(t), record.NewRegistry())

	sidecar, err := emitter.EmitPackage([]models.Annotation{
		testAnnotation("login", models.SecurityConfig{SQLInjection: true, ThreatLevel: models.ThreatCritical}),
	})
	if err != nil {
		t.Fatalf("EmitPackage failed: %v", err)
	}

	source := string(sidecar.Source)

	checks := []struct {
		name string
		want string
	}{
		{"generated header", GeneratedFileHeader},
		{"package clause", "package auth\n"},
		{"records section attribute", `section(".security_tests")`},
		{"names section attribute", `section(".security_names")`},
		{"used attribute", "__attribute__((used,"},
		{"record stride alignment", "aligned(64)"},
		{"record symbol", "__SECURITY_TEST_RECORD_LOGIN_"},
		{"name symbol", "__SECURITY_TEST_NAME_LOGIN_"},
		{"magic bytes", "0xbe, 0xba, 0xfe, 0xca, 0xef, 0xbe, 0xad, 0xde,"},
		{"cgo import", "*/\nimport \"C\"\n"},
	}
	for _, c := range checks {
		if !strings.Contains(source, c.want) {
			t.Errorf("sidecar source missing %s (%q):\n%s", c.name, c.want, source)
		}
	}
}

func TestEmitPackageRejectsMixedPackages(t *testing.T) {
	emitter := NewEmitter(testLogger(), testSections(t), record.NewRegistry())

	other := testAnnotation("login", models.DefaultSecurityConfig())
	other.PackagePath = "example.com/webapp/admin"

	_, err := emitter.EmitPackage([]models.Annotation{
		testAnnotation("login", models.DefaultSecurityConfig()),
		other,
	})
	if err == nil {
		t.Error("EmitPackage accepted annotations from two packages")
	}
}

func TestEmitPackageEmpty(t *testing.T) {
	emitter := NewEmitter(testLogger(), testSections(t), record.NewRegistry())
	if _, err := emitter.EmitPackage(nil); err == nil {
		t.Error("EmitPackage of no annotations succeeded")
	}
}

func TestEmitPackageOversizedName(t *testing.T) {
	emitter := NewEmitter(testLogger(), testSections(t), record.NewRegistry())

	ann := testAnnotation(strings.Repeat("a", 256), models.DefaultSecurityConfig())
	if _, err := emitter.EmitPackage([]models.Annotation{ann}); err == nil {
		t.Error("EmitPackage accepted a 256-byte function name")
	}
}

func TestEmitPackageSharedRegistryDetectsCollisions(t *testing.T) {
	registry := record.NewRegistry()
	emitter := NewEmitter(testLogger(), testSections(t), registry)

	ann := testAnnotation("login", models.DefaultSecurityConfig())
	if _, err := emitter.EmitPackage([]models.Annotation{ann}); err != nil {
		t.Fatalf("first emit failed: %v", err)
	}

	// The same qualified name emitted again in the same run claims the
	// same symbols for the same function, which would duplicate the
	// statics in the object. The registry does not flag it (same owner),
	// but a different function hashing to the same symbols must fail.
	clash := record.Symbols{
		Record: record.DeriveSymbols(ann.QualifiedName(), ann.RecordName()).Record,
		Name:   record.DeriveSymbols(ann.QualifiedName(), ann.RecordName()).Name,
	}
	if err := registry.Claim(clash, "example.com/webapp/other.login"); err == nil {
		t.Error("registry accepted symbols already owned by another function")
	}
}
