package display

import (
	"context"
	"testing"

	"killfeed/internal/filter"
	"killfeed/internal/killmail"
)

type fakeEnrichment struct {
	groups  map[int64]int64
	tickers map[int64]string
}

func (f fakeEnrichment) GetShipGroupID(_ context.Context, typeID int64) (int64, error) {
	g, ok := f.groups[typeID]
	if !ok {
		return GroupUnknown, errMiss
	}
	return g, nil
}

func (f fakeEnrichment) GetTicker(_ context.Context, entityID int64, _ bool) (string, error) {
	t, ok := f.tickers[entityID]
	if !ok {
		return "", errMiss
	}
	return t, nil
}

type missErr struct{}

func (missErr) Error() string { return "not found" }

var errMiss = missErr{}

func ip(v int64) *int64 { return &v }

func TestSelectBestEntity_CapitalOutranksFrigate(t *testing.T) {
	enr := fakeEnrichment{groups: map[int64]int64{
		30:    30,  // titan
		19720: 485, // dread
		587:   25,  // rifter, frigate
	}}
	result := &filter.MatchResult{
		MatchedAttackers: filter.KeySet{
			{ShipTypeID: 587}:   {},
			{ShipTypeID: 19720}: {},
		},
	}
	event := &killmail.Event{}

	best := SelectBestEntity(context.Background(), result, event, enr)
	if best == nil {
		t.Fatal("expected a best entity")
	}
	if best.ShipTypeID != 19720 {
		t.Errorf("expected the dreadnought to outrank the frigate, got ship type %d", best.ShipTypeID)
	}
	if best.Title != "Dread" {
		t.Errorf("expected title 'Dread', got %q", best.Title)
	}
}

func TestSelectBestEntity_VictimColoredRed(t *testing.T) {
	enr := fakeEnrichment{groups: map[int64]int64{670: 29}}
	result := &filter.MatchResult{MatchedVictim: true}
	event := &killmail.Event{Victim: killmail.Victim{ShipTypeID: 670}}

	best := SelectBestEntity(context.Background(), result, event, enr)
	if best == nil {
		t.Fatal("expected a best entity from the matched victim")
	}
	if best.Color != ColorRed {
		t.Errorf("expected victim candidate to be red, got %v", best.Color)
	}
}

func TestSelectBestEntity_NoCandidatesReturnsNil(t *testing.T) {
	enr := fakeEnrichment{groups: map[int64]int64{}}
	result := &filter.MatchResult{}
	event := &killmail.Event{}

	if got := SelectBestEntity(context.Background(), result, event, enr); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSelectBestEntity_UnknownGroupSortsLast(t *testing.T) {
	enr := fakeEnrichment{groups: map[int64]int64{587: 25}} // a known frigate; the other type resolves to unknown
	result := &filter.MatchResult{
		MatchedAttackers: filter.KeySet{
			{ShipTypeID: 99999}: {}, // unresolvable -> GroupUnknown
			{ShipTypeID: 587}:   {},
		},
	}
	event := &killmail.Event{}

	best := SelectBestEntity(context.Background(), result, event, enr)
	if best == nil || best.ShipTypeID != 587 {
		t.Fatalf("expected the known frigate to win over the unknown group, got %+v", best)
	}
}

func TestComputeFleetComposition_GroupsByAffiliation(t *testing.T) {
	enr := fakeEnrichment{groups: map[int64]int64{
		587:   25,  // frigate
		19720: 485, // dread
	}}
	attackers := []killmail.Attacker{
		{AllianceID: ip(500), ShipTypeID: ip(587)},
		{AllianceID: ip(500), ShipTypeID: ip(587)},
		{CorporationID: ip(600), ShipTypeID: ip(19720)},
	}

	fc := ComputeFleetComposition(context.Background(), attackers, enr)

	if len(fc.ByAffiliation) != 2 {
		t.Fatalf("expected 2 affiliations, got %d", len(fc.ByAffiliation))
	}

	var allianceComp, corpComp *affiliationComposition
	for i := range fc.ByAffiliation {
		if fc.ByAffiliation[i].AffiliationID == 500 {
			allianceComp = &fc.ByAffiliation[i]
		}
		if fc.ByAffiliation[i].AffiliationID == 600 {
			corpComp = &fc.ByAffiliation[i]
		}
	}
	if allianceComp == nil || !allianceComp.IsAlliance || allianceComp.Total != 2 {
		t.Errorf("expected alliance 500 with total=2, IsAlliance=true, got %+v", allianceComp)
	}
	if corpComp == nil || corpComp.IsAlliance || corpComp.Total != 1 {
		t.Errorf("expected corp 600 with total=1, IsAlliance=false, got %+v", corpComp)
	}
}

func TestFormatOverall_SingleLineWhenShort(t *testing.T) {
	fc := FleetComposition{Overall: []groupCount{{GroupID: 25, Count: 3}}} // frigates
	out := fc.FormatOverall()
	if out == "" {
		t.Fatal("expected a non-empty overall line")
	}
	if got := len(out); got > overallLineLimit {
		// A single subcap category alone should always fit on one line.
		t.Errorf("expected a single-line result within %d chars, got %d: %q", overallLineLimit, got, out)
	}
}

func TestFormatOverall_EmptyWhenNoKnownGroups(t *testing.T) {
	fc := FleetComposition{}
	if got := fc.FormatOverall(); got != "" {
		t.Errorf("expected empty string for no composition, got %q", got)
	}
}

func TestFormatAffiliationBreakdown_UnknownTickerFallsBackToPlaceholder(t *testing.T) {
	enr := fakeEnrichment{tickers: map[int64]string{}}
	fc := FleetComposition{ByAffiliation: []affiliationComposition{
		{AffiliationID: 500, IsAlliance: true, Total: 5},
	}}
	out := fc.FormatAffiliationBreakdown(context.Background(), enr)
	if out == "" {
		t.Fatal("expected a non-empty breakdown")
	}
	if !contains(out, "???") {
		t.Errorf("expected the '???' placeholder for an unresolved ticker, got %q", out)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
