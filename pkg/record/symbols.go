package record

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
)

// Symbol name prefixes for the generated statics. The scanner does not read
// symbol names, but keeping them recognizable helps when poking at objects
// with nm or objdump.
const (
	recordSymbolPrefix = "__SECURITY_TEST_RECORD_"
	nameSymbolPrefix   = "__SECURITY_TEST_NAME_"
)

// Symbols holds the derived global identifiers for one record/name pair.
type Symbols struct {
	Record string
	Name   string
}

// DeriveSymbols builds the two global identifiers for an annotated function.
//
// Deriving from the unqualified name alone collides as soon as two packages
// annotate functions with the same name, so the upper-cased name is suffixed
// with a short hash of the fully-qualified name (import path, receiver and
// identifier), which is unique program-wide.
func DeriveSymbols(qualifiedName, functionName string) Symbols {
	suffix := fmt.Sprintf("%s_%08X", sanitizeIdentifier(functionName), uint32(xxh3.HashString(qualifiedName)))
	return Symbols{
		Record: recordSymbolPrefix + suffix,
		Name:   nameSymbolPrefix + suffix,
	}
}

// sanitizeIdentifier upper-cases a function name and squashes anything that
// is not valid in a C identifier. Method names like "Store.Reset" come
// through as STORE_RESET.
func sanitizeIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	return out
}

// Registry tracks every derived symbol across one generation run. The hash
// suffix makes collisions effectively impossible, but a residual collision
// would corrupt the emitted sections, so it stays a hard error. Safe for
// concurrent use; packages are emitted in parallel.
type Registry struct {
	mu   sync.Mutex
	used map[string]string // symbol -> qualified name that claimed it
}

// NewRegistry creates an empty symbol registry.
func NewRegistry() *Registry {
	return &Registry{used: make(map[string]string)}
}

// Claim reserves both symbols for qualifiedName. It fails if either symbol
// was already claimed by a different function.
func (r *Registry) Claim(syms Symbols, qualifiedName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sym := range []string{syms.Record, syms.Name} {
		if prev, ok := r.used[sym]; ok && prev != qualifiedName {
			return fmt.Errorf("symbol collision: %s derived for both %s and %s", sym, prev, qualifiedName)
		}
		r.used[sym] = qualifiedName
	}
	return nil
}

// Len returns the number of claimed symbols.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.used)
}
