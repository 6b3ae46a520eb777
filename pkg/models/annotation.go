package models

import "fmt"

// Annotation represents one function carrying a security-test directive,
// as discovered in the target module's source.
type Annotation struct {
	// FunctionName is the unqualified identifier, e.g. "Login".
	FunctionName string

	// Receiver is the receiver type name for methods, "" for plain functions.
	Receiver string

	// PackagePath is the import path of the enclosing package.
	PackagePath string

	// PackageName is the package identifier used in the generated sidecar.
	PackageName string

	// File and Line locate the function declaration.
	File string
	Line int

	// Directive is the raw configuration text after the directive name.
	Directive string

	// Config is the parsed security-test configuration.
	Config SecurityConfig

	// UnknownTokens holds directive tokens outside the recognized vocabulary.
	UnknownTokens []string
}

// QualifiedName returns the program-wide name of the annotated function,
// e.g. "example.com/app/auth.Login" or "example.com/app/auth.(Store).Reset".
func (a Annotation) QualifiedName() string {
	if a.Receiver != "" {
		return fmt.Sprintf("%s.(%s).%s", a.PackagePath, a.Receiver, a.FunctionName)
	}
	return a.PackagePath + "." + a.FunctionName
}

// RecordName is the identifier stored in the name record. It is the
// unqualified function name for plain functions and Receiver.Method for
// methods, matching what a scanner reports to a human.
func (a Annotation) RecordName() string {
	if a.Receiver != "" {
		return a.Receiver + "." + a.FunctionName
	}
	return a.FunctionName
}
