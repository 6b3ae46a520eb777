package models

// Manifest is the YAML sidecar describing everything one generation run
// emitted. It is a human- and tooling-readable mirror of the binary records;
// the binary sections remain the wire contract for the scanner.
type Manifest struct {
	ManifestVersion string          `yaml:"manifest_version"`
	CreationInfo    CreationInfo    `yaml:"creation_info"`
	Target          TargetInfo      `yaml:"target"`
	Records         []ManifestEntry `yaml:"records"`
}

// CreationInfo contains metadata about the generation run.
type CreationInfo struct {
	RunID       string `yaml:"run_id"`
	Created     string `yaml:"created"`
	ToolName    string `yaml:"tool_name"`
	ToolVersion string `yaml:"tool_version"`
}

// TargetInfo describes the module and platform the records were emitted for.
type TargetInfo struct {
	Module          string `yaml:"module"`
	Platform        string `yaml:"platform"`
	RecordsSection  string `yaml:"records_section"`
	NamesSection    string `yaml:"names_section"`
	SidecarFileName string `yaml:"sidecar_file_name"`
}

// ManifestEntry describes one emitted record/name pair.
type ManifestEntry struct {
	QualifiedName string         `yaml:"qualified_name"`
	RecordName    string         `yaml:"record_name"`
	Location      string         `yaml:"location"`
	RecordSymbol  string         `yaml:"record_symbol"`
	NameSymbol    string         `yaml:"name_symbol"`
	NameOffset    int            `yaml:"name_offset"`
	ThreatLevel   string         `yaml:"threat_level"`
	TestClasses   []string       `yaml:"test_classes"`
	Config        SecurityConfig `yaml:"config"`
	RecordDigest  string         `yaml:"record_digest"`
}
