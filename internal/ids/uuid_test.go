package ids

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDProviderIssuesTimeOrderedIdentifiers(t *testing.T) {
	provider := NewUUIDProvider()

	first, err := provider.NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := provider.NewID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct identifiers, got %s twice", first)
	}

	parsed, err := uuid.Parse(first)
	if err != nil {
		t.Fatalf("expected a valid uuid: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if second < first {
		t.Fatalf("expected lexical ordering to follow issuance order: %s < %s", second, first)
	}
}
