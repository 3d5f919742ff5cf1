package filter

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"killfeed/internal/killmail"
)

// metersPerLightYear converts a Euclidean distance in meters to light
// years.
const metersPerLightYear = 9_460_730_472_580_800.0

// SystemInfo is the subset of the catalog's system record the
// evaluator needs.
type SystemInfo struct {
	RegionID int64
	Security float64
	X, Y, Z  float64
}

// Enrichment is the evaluator's view of the enrichment layer. It is
// declared here rather than in package enrichment so that filter has
// no import dependency on enrichment; enrichment depends on filter
// for StandingSource, not the reverse.
type Enrichment interface {
	GetSystem(ctx context.Context, systemID int64) (SystemInfo, error)
	GetShipGroupID(ctx context.Context, typeID int64) (int64, error)
	GetName(ctx context.Context, entityID int64) (string, error)
	IsBlue(userID int64, source StandingSource, sourceEntityID int64, idsOfInterest []int64) (bool, error)
}

// MatchResult is the outcome of evaluating one rule against one event.
type MatchResult struct {
	MatchedAttackers KeySet
	MatchedVictim    bool
	MinPilots        *int
	LYRange          *LightYearMatch
}

// LightYearMatch records the shortest LyRangeFrom range that matched,
// for display.
type LightYearMatch struct {
	SystemID int64
	Distance float64
}

// Evaluate walks node against event, returning nil for "no match".
// Enrichment misses degrade the offending leaf to "does not match"
// rather than propagating an error: a catalog miss is a soft failure,
// never a reason to abort evaluation of the rest of the tree.
func Evaluate(ctx context.Context, node *Node, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Type {
	case NodeCondition:
		return evaluateCondition(ctx, node.Filter, event, enr)
	case NodeAnd:
		return evaluateAnd(ctx, node.Children, event, enr)
	case NodeOr:
		return evaluateOr(ctx, node.Children, event, enr)
	case NodeNot:
		return evaluateNot(ctx, node.Child, event, enr)
	default:
		return nil, nil
	}
}

func evaluateCondition(ctx context.Context, f *Filter, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	switch {
	case f.Simple != nil:
		return evaluateSimple(ctx, f.Simple, event, enr)
	case f.Targeted != nil:
		return evaluateTargeted(ctx, f.Targeted, event, enr)
	default:
		return nil, nil
	}
}

// evaluateAnd requires every child to match. The attacker set is the
// intersection of the children's non-empty attacker sets only: a child
// with an empty set (such as a whole-event predicate) has no say in it, so it
// does not force the intersection to empty.
func evaluateAnd(ctx context.Context, children []*Node, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	results := make([]*MatchResult, 0, len(children))
	for _, child := range children {
		r, err := Evaluate(ctx, child, event, enr)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, nil
		}
		results = append(results, r)
	}

	victim := true
	var nonEmpty []KeySet
	var minPilots *int
	var lyRange *LightYearMatch
	for _, r := range results {
		victim = victim && r.MatchedVictim
		if len(r.MatchedAttackers) > 0 {
			nonEmpty = append(nonEmpty, r.MatchedAttackers)
		}
		if minPilots == nil {
			minPilots = r.MinPilots
		}
		if lyRange == nil {
			lyRange = r.LYRange
		}
	}

	attackers := KeySet{}
	if len(nonEmpty) > 0 {
		attackers = nonEmpty[0]
		for _, s := range nonEmpty[1:] {
			attackers = intersect(attackers, s)
		}
	}

	if !victim && len(attackers) == 0 {
		return nil, nil
	}
	return &MatchResult{MatchedAttackers: attackers, MatchedVictim: victim, MinPilots: minPilots, LYRange: lyRange}, nil
}

func evaluateOr(ctx context.Context, children []*Node, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	matched := make([]*MatchResult, 0, len(children))
	for _, child := range children {
		r, err := Evaluate(ctx, child, event, enr)
		if err != nil {
			return nil, err
		}
		if r != nil {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	victim := false
	attackers := KeySet{}
	var minPilots *int
	var lyRange *LightYearMatch
	for _, r := range matched {
		victim = victim || r.MatchedVictim
		attackers = union(attackers, r.MatchedAttackers)
		if minPilots == nil {
			minPilots = r.MinPilots
		}
		if lyRange == nil {
			lyRange = r.LYRange
		}
	}
	return &MatchResult{MatchedAttackers: attackers, MatchedVictim: victim, MinPilots: minPilots, LYRange: lyRange}, nil
}

// evaluateNot never carries per-actor matches inward: a failing inner
// node yields the full attacker population plus the victim, not an
// empty "don't care" set.
func evaluateNot(ctx context.Context, child *Node, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	r, err := Evaluate(ctx, child, event, enr)
	if err != nil {
		return nil, err
	}
	if r != nil {
		return nil, nil
	}
	return &MatchResult{MatchedAttackers: allAttackerKeys(event), MatchedVictim: true}, nil
}

// evaluateSimple handles whole-event predicates. A match yields
// matched_victim=true and an empty ("don't care") attacker set, except
// IgnoreHighStanding, whose result set is the attackers it vetoes.
func evaluateSimple(ctx context.Context, f *SimpleFilter, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	switch f.Kind {
	case KindTotalValue:
		return boolToSimpleResult(inU64Range(event.ZKB.TotalValue, f.MinValue, f.MaxValue), nil, nil), nil
	case KindDroppedValue:
		return boolToSimpleResult(inU64Range(event.ZKB.DroppedValue, f.MinValue, f.MaxValue), nil, nil), nil
	case KindRegion:
		sys, err := systemInfo(ctx, event, enr)
		if err != nil {
			return nil, nil
		}
		return boolToSimpleResult(containsID(f.IDs, sys.RegionID), nil, nil), nil
	case KindSystem:
		return boolToSimpleResult(containsID(f.IDs, event.SolarSystemID), nil, nil), nil
	case KindSecurity:
		sys, err := systemInfo(ctx, event, enr)
		if err != nil {
			return nil, nil
		}
		rounded := roundHalfUp(sys.Security)
		return boolToSimpleResult(rounded >= f.SecurityMin && rounded <= f.SecurityMax, nil, nil), nil
	case KindLyRangeFrom:
		return evaluateLyRange(ctx, f, event, enr)
	case KindIsNpc:
		return boolToSimpleResult(event.ZKB.NPC == f.Bool, nil, nil), nil
	case KindIsSolo:
		return boolToSimpleResult(event.ZKB.Solo == f.Bool, nil, nil), nil
	case KindPilots:
		count := event.PilotCount()
		ok := true
		if f.MinPilots != nil && uint32(count) < *f.MinPilots {
			ok = false
		}
		if f.MaxPilots != nil && uint32(count) > *f.MaxPilots {
			ok = false
		}
		var minPilots *int
		if f.MinPilots != nil {
			v := int(*f.MinPilots)
			minPilots = &v
		}
		return boolToSimpleResult(ok, minPilots, nil), nil
	case KindTimeRange:
		return evaluateTimeRange(f, event), nil
	case KindIgnoreHighStanding:
		return evaluateVeto(f, event, enr)
	default:
		return nil, nil
	}
}

func boolToSimpleResult(matched bool, minPilots *int, lyRange *LightYearMatch) *MatchResult {
	if !matched {
		return nil
	}
	return &MatchResult{MatchedAttackers: KeySet{}, MatchedVictim: true, MinPilots: minPilots, LYRange: lyRange}
}

func inU64Range(value float64, min, max *uint64) bool {
	if min != nil && value < float64(*min) {
		return false
	}
	if max != nil && value > float64(*max) {
		return false
	}
	return true
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func systemInfo(ctx context.Context, event *killmail.Event, enr Enrichment) (SystemInfo, error) {
	return enr.GetSystem(ctx, event.SolarSystemID)
}

// roundHalfUp rounds to one decimal place, nearest-half-up (not
// banker's rounding): 0.45 rounds to 0.5, 0.44 rounds to 0.4.
func roundHalfUp(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

func evaluateLyRange(ctx context.Context, f *SimpleFilter, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	eventSys, err := systemInfo(ctx, event, enr)
	if err != nil {
		return nil, nil
	}

	var best *LightYearMatch
	for _, rng := range f.LYRanges {
		refSys, err := enr.GetSystem(ctx, rng.SystemID)
		if err != nil {
			continue
		}
		dx := eventSys.X - refSys.X
		dy := eventSys.Y - refSys.Y
		dz := eventSys.Z - refSys.Z
		meters := math.Sqrt(dx*dx + dy*dy + dz*dz)
		ly := meters / metersPerLightYear
		if ly > rng.MaxLY {
			continue
		}
		if best == nil || ly < best.Distance {
			best = &LightYearMatch{SystemID: rng.SystemID, Distance: ly}
		}
	}
	if best == nil {
		return nil, nil
	}
	return &MatchResult{MatchedAttackers: KeySet{}, MatchedVictim: true, LYRange: best}, nil
}

// evaluateTimeRange fails on a zero KillmailTime, which is how an
// unparseable upstream timestamp arrives; the rest of the rule tree is
// unaffected by it.
func evaluateTimeRange(f *SimpleFilter, event *killmail.Event) *MatchResult {
	if event.KillmailTime.IsZero() {
		slog.Warn("time range predicate: event timestamp missing or unparseable", "kill_id", event.KillID)
		return nil
	}
	hour := uint8(event.KillmailTime.UTC().Hour())
	var inRange bool
	if f.StartHour <= f.EndHour {
		inRange = hour >= f.StartHour && hour <= f.EndHour
	} else {
		inRange = hour >= f.StartHour || hour <= f.EndHour
	}
	return boolToSimpleResult(inRange, nil, nil)
}

// evaluateVeto never fails: its result set is whichever attackers are
// blue, possibly empty. It is only ever evaluated as part of a veto
// tree produced by Partition.
func evaluateVeto(f *SimpleFilter, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	blue := KeySet{}
	for _, a := range event.Attackers {
		ids := []int64{deref(a.CharacterID), deref(a.CorporationID), deref(a.AllianceID)}
		isBlue, err := enr.IsBlue(f.StandingUserID, f.StandingSource, f.StandingSubjectID, ids)
		if err != nil {
			slog.Warn("standings lookup failed, treating attacker as not blue", "error", err)
			continue
		}
		if isBlue {
			blue[NewAttackerKey(a)] = struct{}{}
		}
	}
	return &MatchResult{MatchedAttackers: blue, MatchedVictim: false}, nil
}

// evaluateTargeted handles per-actor predicates restricted by Target.
func evaluateTargeted(ctx context.Context, f *TargetedFilter, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	matched := KeySet{}

	if f.Target.matchesAttacker() {
		for _, a := range event.Attackers {
			ok, err := matchesActor(ctx, f, a, enr)
			if err != nil {
				return nil, err
			}
			if ok {
				matched[NewAttackerKey(a)] = struct{}{}
			}
		}
	}

	victimMatched := false
	if f.Target.matchesVictim() {
		ok, err := matchesActor(ctx, f, victimAsAttacker(event.Victim), enr)
		if err != nil {
			return nil, err
		}
		victimMatched = ok
	}

	if len(matched) == 0 && !victimMatched {
		return nil, nil
	}
	return &MatchResult{MatchedAttackers: matched, MatchedVictim: victimMatched}, nil
}

func matchesActor(ctx context.Context, f *TargetedFilter, a killmail.Attacker, enr Enrichment) (bool, error) {
	switch f.Kind {
	case KindAlliance:
		return a.AllianceID != nil && containsID(f.IDs, *a.AllianceID), nil
	case KindCorporation:
		return a.CorporationID != nil && containsID(f.IDs, *a.CorporationID), nil
	case KindCharacter:
		return a.CharacterID != nil && containsID(f.IDs, *a.CharacterID), nil
	case KindShipType:
		return a.ShipTypeID != nil && containsID(f.IDs, *a.ShipTypeID), nil
	case KindShipGroup:
		if a.ShipTypeID == nil {
			return false, nil
		}
		actorGroup, err := enr.GetShipGroupID(ctx, *a.ShipTypeID)
		if err != nil {
			return false, nil
		}
		for _, typeID := range f.IDs {
			groupID, err := enr.GetShipGroupID(ctx, typeID)
			if err != nil {
				continue
			}
			if groupID == actorGroup {
				return true, nil
			}
		}
		return false, nil
	case KindNameFragment:
		return matchesNameFragment(ctx, f.NameFragment, a, enr)
	default:
		return false, nil
	}
}

func matchesNameFragment(ctx context.Context, fragment string, a killmail.Attacker, enr Enrichment) (bool, error) {
	needle := strings.ToLower(fragment)
	if a.ShipTypeID != nil {
		if name, err := enr.GetName(ctx, *a.ShipTypeID); err == nil && strings.Contains(strings.ToLower(name), needle) {
			return true, nil
		}
	}
	if a.WeaponTypeID != nil {
		if name, err := enr.GetName(ctx, *a.WeaponTypeID); err == nil && strings.Contains(strings.ToLower(name), needle) {
			return true, nil
		}
	}
	return false, nil
}

// EvaluateRule is the combined entry point: partition the rule into
// match/veto trees, evaluate both, subtract the veto's attackers from
// the match's, and report whether the rule fires at all.
func EvaluateRule(ctx context.Context, root *Node, event *killmail.Event, enr Enrichment) (*MatchResult, error) {
	matchTree, vetoTree := Partition(root)
	if matchTree == nil {
		return nil, nil
	}

	result, err := Evaluate(ctx, matchTree, event, enr)
	if err != nil || result == nil {
		return nil, err
	}

	if vetoTree != nil {
		vetoResult, err := Evaluate(ctx, vetoTree, event, enr)
		if err != nil {
			return nil, err
		}
		if vetoResult != nil {
			result.MatchedAttackers = subtract(result.MatchedAttackers, vetoResult.MatchedAttackers)
		}
	}

	if !result.MatchedVictim && len(result.MatchedAttackers) == 0 {
		return nil, nil
	}
	return result, nil
}
