package enrichment

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"killfeed/internal/filter"
)

func writeStandingsFile(t *testing.T, dir string, subjects map[int64]StandingSubject) string {
	t.Helper()
	path := filepath.Join(dir, "standings.json")
	raw, err := json.Marshal(subjects)
	if err != nil {
		t.Fatalf("marshal standings fixture: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write standings fixture: %v", err)
	}
	return path
}

func TestFileStandingsProvider_ExplicitContactAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	path := writeStandingsFile(t, dir, map[int64]StandingSubject{
		100: {CharacterID: 100, Contacts: []Contact{{EntityID: 2001, Standing: 7.5}}},
	})

	p, err := NewFileStandingsProvider(path)
	if err != nil {
		t.Fatalf("NewFileStandingsProvider: %v", err)
	}

	blue, err := p.IsBlue(100, filter.StandingCorp, 100, []int64{2001})
	if err != nil {
		t.Fatalf("IsBlue: %v", err)
	}
	if !blue {
		t.Error("expected a contact with standing >= 5.0 to be blue")
	}
}

func TestFileStandingsProvider_ContactBelowThresholdIsNotBlue(t *testing.T) {
	dir := t.TempDir()
	path := writeStandingsFile(t, dir, map[int64]StandingSubject{
		100: {CharacterID: 100, Contacts: []Contact{{EntityID: 2001, Standing: 4.9}}},
	})

	p, err := NewFileStandingsProvider(path)
	if err != nil {
		t.Fatalf("NewFileStandingsProvider: %v", err)
	}

	blue, err := p.IsBlue(100, filter.StandingCorp, 100, []int64{2001})
	if err != nil {
		t.Fatalf("IsBlue: %v", err)
	}
	if blue {
		t.Error("expected standing below 5.0 to not be blue")
	}
}

func TestFileStandingsProvider_SubjectIsImplicitlyBlueToItself(t *testing.T) {
	dir := t.TempDir()
	path := writeStandingsFile(t, dir, map[int64]StandingSubject{
		100: {CharacterID: 100, CorporationID: 2001, AllianceID: 500},
	})

	p, err := NewFileStandingsProvider(path)
	if err != nil {
		t.Fatalf("NewFileStandingsProvider: %v", err)
	}

	blue, err := p.IsBlue(100, filter.StandingAlliance, 500, []int64{2001})
	if err != nil {
		t.Fatalf("IsBlue: %v", err)
	}
	if !blue {
		t.Error("expected the subject's own corporation id to be implicitly blue")
	}
}

func TestFileStandingsProvider_UnknownUserIsNeverBlue(t *testing.T) {
	dir := t.TempDir()
	path := writeStandingsFile(t, dir, map[int64]StandingSubject{})

	p, err := NewFileStandingsProvider(path)
	if err != nil {
		t.Fatalf("NewFileStandingsProvider: %v", err)
	}

	blue, err := p.IsBlue(999, filter.StandingCorp, 999, []int64{2001})
	if err != nil {
		t.Fatalf("IsBlue: %v", err)
	}
	if blue {
		t.Error("expected an unknown user to never blue anything")
	}
}

func TestFileStandingsProvider_MissingFileYieldsEmptyProvider(t *testing.T) {
	p, err := NewFileStandingsProvider(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("expected a missing file to be a valid empty configuration, got error: %v", err)
	}
	blue, err := p.IsBlue(1, filter.StandingCorp, 1, []int64{2})
	if err != nil || blue {
		t.Errorf("expected no matches from an empty provider, got blue=%v err=%v", blue, err)
	}
}
