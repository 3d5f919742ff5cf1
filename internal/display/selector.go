package display

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"killfeed/internal/filter"
	"killfeed/internal/killmail"
)

// Color is the embed color driven by the best entity: green for a
// kill (a match among the attackers), red for a loss (a victim match).
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// Entity is one candidate for "best entity" display.
type Entity struct {
	ShipTypeID int64
	GroupID    int64
	CorpID     int64
	AllianceID int64
	Color      Color
}

// BestEntity is the chosen candidate plus its display title.
type BestEntity struct {
	Entity
	Title string
}

// Enrichment is the subset of the enrichment layer the display
// selector needs.
type Enrichment interface {
	GetShipGroupID(ctx context.Context, typeID int64) (int64, error)
	GetTicker(ctx context.Context, entityID int64, isAlliance bool) (string, error)
}

// SelectBestEntity picks the single best-entity candidate from a
// post-veto match result: every surviving attacker (green), plus the
// victim if matched (red), sorted by the ship-group priority list.
// Unknown groups sort last. Returns nil if nothing survived.
func SelectBestEntity(ctx context.Context, result *filter.MatchResult, event *killmail.Event, enr Enrichment) *BestEntity {
	candidates := make([]Entity, 0, len(result.MatchedAttackers)+1)

	for key := range result.MatchedAttackers {
		groupID, err := enr.GetShipGroupID(ctx, key.ShipTypeID)
		if err != nil {
			groupID = GroupUnknown
		}
		candidates = append(candidates, Entity{
			ShipTypeID: key.ShipTypeID,
			GroupID:    groupID,
			CorpID:     key.CorporationID,
			AllianceID: key.AllianceID,
			Color:      ColorGreen,
		})
	}

	if result.MatchedVictim {
		groupID, err := enr.GetShipGroupID(ctx, event.Victim.ShipTypeID)
		if err != nil {
			groupID = GroupUnknown
		}
		candidates = append(candidates, Entity{
			ShipTypeID: event.Victim.ShipTypeID,
			GroupID:    groupID,
			CorpID:     int64OrZero(event.Victim.CorporationID),
			AllianceID: int64OrZero(event.Victim.AllianceID),
			Color:      ColorRed,
		})
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return groupPriority(candidates[i].GroupID) < groupPriority(candidates[j].GroupID)
	})

	best := candidates[0]
	title := groupDisplayName(best.GroupID, 1)
	if title == "" {
		title = "Unknown"
	}
	return &BestEntity{Entity: best, Title: title}
}

func int64OrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// groupCount is one (group id, participant count) pair.
type groupCount struct {
	GroupID int64
	Count   int
}

// affiliationComposition is one affiliation's participant total and
// per-group breakdown.
type affiliationComposition struct {
	AffiliationID int64
	IsAlliance    bool
	Total         int
	Groups        []groupCount
}

// FleetComposition aggregates an event's attackers by ship group
// (overall) and by affiliation (alliance-id else corp-id else 0).
type FleetComposition struct {
	Overall       []groupCount
	ByAffiliation []affiliationComposition
}

// ComputeFleetComposition aggregates attackers into overall and
// per-affiliation ship-group counts.
func ComputeFleetComposition(ctx context.Context, attackers []killmail.Attacker, enr Enrichment) FleetComposition {
	groupCounts := make(map[int64]int)
	affGroups := make(map[int64]map[int64]int)
	affTotals := make(map[int64]int)
	affIsAlliance := make(map[int64]bool)

	for _, a := range attackers {
		affID := int64(0)
		isAlliance := false
		switch {
		case a.AllianceID != nil:
			affID = *a.AllianceID
			isAlliance = true
		case a.CorporationID != nil:
			affID = *a.CorporationID
		}
		affTotals[affID]++
		affIsAlliance[affID] = isAlliance

		if a.ShipTypeID == nil {
			continue
		}
		groupID, err := enr.GetShipGroupID(ctx, *a.ShipTypeID)
		if err != nil {
			groupID = GroupUnknown
		}
		effective := groupID
		if !isKnownGroup(groupID) {
			effective = GroupUnknown
		}
		groupCounts[effective]++
		if affGroups[affID] == nil {
			affGroups[affID] = make(map[int64]int)
		}
		affGroups[affID][effective]++
	}

	overall := make([]groupCount, 0, len(groupCounts))
	for gid, c := range groupCounts {
		overall = append(overall, groupCount{GroupID: gid, Count: c})
	}
	sortByNamePriority(overall)

	byAff := make([]affiliationComposition, 0, len(affTotals))
	for affID, total := range affTotals {
		groups := make([]groupCount, 0, len(affGroups[affID]))
		for gid, c := range affGroups[affID] {
			groups = append(groups, groupCount{GroupID: gid, Count: c})
		}
		sortByNamePriority(groups)
		byAff = append(byAff, affiliationComposition{AffiliationID: affID, IsAlliance: affIsAlliance[affID], Total: total, Groups: groups})
	}
	sort.SliceStable(byAff, func(i, j int) bool { return byAff[i].Total > byAff[j].Total })

	return FleetComposition{Overall: overall, ByAffiliation: byAff}
}

func sortByNamePriority(groups []groupCount) {
	sort.SliceStable(groups, func(i, j int) bool {
		return namePriority(groups[i].GroupID) < namePriority(groups[j].GroupID)
	})
}

const (
	maxAffiliations  = 8
	minParticipants  = 10
	overallLineLimit = 43
)

// FormatOverall renders the one-or-three-line fleet summary: a supers
// line, a caps line, and a subcaps line, joined on one line if the
// combined length is within the limit, otherwise one line each.
func (fc FleetComposition) FormatOverall() string {
	var lines []string
	if line, ok := formatCategoryLine(fc.Overall, func(g int64) bool { return superGroups[g] }, "x "); ok {
		lines = append(lines, line)
	}
	if line, ok := formatCategoryLine(fc.Overall, func(g int64) bool { return capGroups[g] }, "x "); ok {
		lines = append(lines, line)
	}
	if line, ok := formatCategoryLine(fc.Overall, isSubcap, "x "); ok {
		lines = append(lines, line)
	}

	single := strings.Join(lines, ", ")
	if len(single) <= overallLineLimit {
		return single
	}
	return strings.Join(lines, "\n")
}

func isSubcap(groupID int64) bool {
	return groupID != GroupUnknown && !superGroups[groupID] && !capGroups[groupID]
}

// FormatAffiliationBreakdown renders the per-affiliation lines: the
// most populous affiliation plus any others with more than
// minParticipants members, up to maxAffiliations total; the remainder
// aggregates into a trailing "others N" line.
func (fc FleetComposition) FormatAffiliationBreakdown(ctx context.Context, enr Enrichment) string {
	var lines []string
	shown := 0
	othersTotal := 0

	for i, aff := range fc.ByAffiliation {
		if shown >= maxAffiliations || (i > 0 && aff.Total <= minParticipants) {
			othersTotal += aff.Total
			continue
		}

		ticker, err := enr.GetTicker(ctx, aff.AffiliationID, aff.IsAlliance)
		if err != nil || ticker == "" {
			ticker = "???"
		}
		lines = append(lines, fmt.Sprintf("[%s] %d", ticker, aff.Total))

		if line, ok := formatCategoryLine(aff.Groups, func(g int64) bool { return superGroups[g] }, " "); ok {
			lines = append(lines, " └ "+line)
		}
		if line, ok := formatCategoryLine(aff.Groups, func(g int64) bool { return capGroups[g] }, " "); ok {
			lines = append(lines, " └ "+line)
		}
		if line, ok := formatCategoryLine(aff.Groups, isSubcap, " "); ok {
			lines = append(lines, " └ "+line)
		}
		shown++
	}

	if othersTotal > 0 {
		lines = append(lines, fmt.Sprintf("others %d", othersTotal))
	}
	return strings.Join(lines, "\n")
}

// formatCategoryLine renders up to the two most numerous groups
// matching include, in display-table priority order, plus a "+K"
// overflow for the remainder. countSep separates the count from the
// name ("x " for overall lines, " " for affiliation breakdown lines).
func formatCategoryLine(groups []groupCount, include func(int64) bool, countSep string) (string, bool) {
	filtered := make([]groupCount, 0, len(groups))
	for _, g := range groups {
		if include(g.GroupID) {
			filtered = append(filtered, g)
		}
	}
	if len(filtered) == 0 {
		return "", false
	}

	total := 0
	for _, g := range filtered {
		total += g.Count
	}

	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Count > filtered[j].Count })
	top := filtered
	if len(top) > 2 {
		top = top[:2]
	}
	top = append([]groupCount(nil), top...)
	sortByNamePriority(top)

	parts := make([]string, 0, 3)
	shown := 0
	for _, g := range top {
		name := groupDisplayName(g.GroupID, g.Count)
		if name == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s%s", g.Count, countSep, name))
		shown += g.Count
	}

	remaining := total - shown
	if remaining > 0 {
		parts = append(parts, fmt.Sprintf("+%d", remaining))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ", "), true
}
