package record

import (
	"strings"
	"testing"
)

func TestDeriveSymbols(t *testing.T) {
	syms := DeriveSymbols("example.com/app/auth.login", "login")

	if !strings.HasPrefix(syms.Record, "__SECURITY_TEST_RECORD_LOGIN_") {
		t.Errorf("record symbol = %q, want LOGIN prefix form", syms.Record)
	}
	if !strings.HasPrefix(syms.Name, "__SECURITY_TEST_NAME_LOGIN_") {
		t.Errorf("name symbol = %q, want LOGIN prefix form", syms.Name)
	}

	// Deterministic across calls.
	again := DeriveSymbols("example.com/app/auth.login", "login")
	if syms != again {
		t.Errorf("DeriveSymbols not deterministic: %+v vs %+v", syms, again)
	}
}

func TestDeriveSymbolsDisambiguatesPackages(t *testing.T) {
	// Same unqualified name in two packages must not collide.
	a := DeriveSymbols("example.com/app/auth.login", "login")
	b := DeriveSymbols("example.com/app/admin.login", "login")

	if a.Record == b.Record {
		t.Errorf("record symbols collide across packages: %q", a.Record)
	}
	if a.Name == b.Name {
		t.Errorf("name symbols collide across packages: %q", a.Name)
	}
}

func TestDeriveSymbolsSanitizesMethodNames(t *testing.T) {
	tests := []struct {
		name         string
		functionName string
		wantFragment string
	}{
		{"method", "Store.Reset", "STORE_RESET"},
		{"lowercase", "transferFunds", "TRANSFERFUNDS"},
		{"digits", "handleV2", "HANDLEV2"},
		{"leading digit", "2fa", "_2FA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syms := DeriveSymbols("example.com/app."+tt.functionName, tt.functionName)
			if !strings.Contains(syms.Record, tt.wantFragment) {
				t.Errorf("record symbol = %q, want fragment %q", syms.Record, tt.wantFragment)
			}
		})
	}
}

func TestRegistryClaim(t *testing.T) {
	registry := NewRegistry()

	a := DeriveSymbols("example.com/app/auth.login", "login")
	if err := registry.Claim(a, "example.com/app/auth.login"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	// Re-claiming for the same function is not a collision.
	if err := registry.Claim(a, "example.com/app/auth.login"); err != nil {
		t.Errorf("re-claim for same function failed: %v", err)
	}

	// The same symbols claimed by a different function is fatal.
	if err := registry.Claim(a, "example.com/app/admin.login"); err == nil {
		t.Error("claim of taken symbols succeeded, want collision error")
	}

	b := DeriveSymbols("example.com/app/admin.login", "login")
	if err := registry.Claim(b, "example.com/app/admin.login"); err != nil {
		t.Errorf("claim of distinct symbols failed: %v", err)
	}

	if registry.Len() != 4 {
		t.Errorf("registry length = %d, want 4", registry.Len())
	}
}
