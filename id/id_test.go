package id_test

import (
	"strings"
	"testing"

	"github.com/appfence/fence/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"RequestID", id.NewRequestID, "preq_"},
		{"AuditID", id.NewAuditID, "audit_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := id.NewRequestID().String()
		if seen[s] {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = true
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := id.NewAuditID()
	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", orig.String(), err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", parsed.String(), orig.String())
	}
}

func TestParseWithPrefix(t *testing.T) {
	reqID := id.NewRequestID()

	if _, err := id.ParseRequestID(reqID.String()); err != nil {
		t.Errorf("ParseRequestID rejected valid token: %v", err)
	}

	// A valid TypeID with the wrong prefix must be rejected.
	if _, err := id.ParseAuditID(reqID.String()); err == nil {
		t.Error("ParseAuditID accepted a request token")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"no-underscore",
		"preq_",
		"preq_!!!invalid!!!",
		"_01h2xcejqtf2nbrexx3vqjhp41",
	} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q) = nil error, want error", s)
		}
	}
}

func TestNil(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
	if id.NewRequestID().IsNil() {
		t.Error("fresh ID reports nil")
	}
}

func TestTextMarshaling(t *testing.T) {
	orig := id.NewAuditID()
	data, err := orig.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var back id.ID
	if err := back.UnmarshalText(data); err != nil {
		t.Fatal(err)
	}
	if back.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", back.String(), orig.String())
	}

	var fromEmpty id.ID
	if err := fromEmpty.UnmarshalText(nil); err != nil {
		t.Fatal(err)
	}
	if !fromEmpty.IsNil() {
		t.Error("unmarshal of empty text did not yield Nil")
	}
}

func TestScanValue(t *testing.T) {
	orig := id.NewAuditID()
	v, err := orig.Value()
	if err != nil {
		t.Fatal(err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatal(err)
	}
	if scanned.String() != orig.String() {
		t.Errorf("scan round trip mismatch: %q != %q", scanned.String(), orig.String())
	}

	var fromNull id.ID
	if err := fromNull.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if !fromNull.IsNil() {
		t.Error("scan of NULL did not yield Nil")
	}

	nilVal, err := id.Nil.Value()
	if err != nil {
		t.Fatal(err)
	}
	if nilVal != nil {
		t.Errorf("Nil.Value() = %v, want nil", nilVal)
	}
}
