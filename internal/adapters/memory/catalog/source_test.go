package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/adapters/contracttest"
	portcatalog "github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/catalog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadFile_ReadsCoveragesInOrder(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "coverages:\n  - id: THEFT\n    name: Theft\n  - id: GLASS\n    name: Glass Breakage\n")
	src, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile err=%v", err)
	}
	got, err := src.ListCoverages(context.Background())
	if err != nil {
		t.Fatalf("ListCoverages err=%v", err)
	}
	if len(got) != 2 || got[0].ID != "THEFT" || got[1].Name != "Glass Breakage" {
		t.Fatalf("coverages=%+v", got)
	}
}

func TestLoadFile_RejectsEntryWithoutID(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "coverages:\n  - name: Nameless\n")
	if _, err := LoadFile(p); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestContract_CoverageSource(t *testing.T) {
	contracttest.RunCoverageSource(t, func(t *testing.T) (portcatalog.Source, func()) {
		t.Helper()
		return NewSource(contracttest.SeedCoverages), nil
	})
}
