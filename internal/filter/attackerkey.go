package filter

import (
	"fmt"
	"strings"

	"killfeed/internal/killmail"
)

// AttackerKey is a stable composite identity for one actor in one
// event, derived from whichever ids are present. Two keys are equal
// iff every present id component matches, which is exactly what Go's
// comparable-struct equality and map-key semantics give, so
// AttackerKey is a plain comparable struct rather than an encoded
// string.
type AttackerKey struct {
	ShipTypeID    int64
	WeaponTypeID  int64
	CharacterID   int64
	CorporationID int64
	AllianceID    int64
	FactionID     int64
}

// NewAttackerKey derives the key from an attacker's present ids, in the
// fixed order ship, weapon, character, corporation, alliance, faction.
// Absent ids are zero, which is indistinguishable from id 0; EVE ids
// are never 0, so this does not collide in practice.
func NewAttackerKey(a killmail.Attacker) AttackerKey {
	return AttackerKey{
		ShipTypeID:    deref(a.ShipTypeID),
		WeaponTypeID:  deref(a.WeaponTypeID),
		CharacterID:   deref(a.CharacterID),
		CorporationID: deref(a.CorporationID),
		AllianceID:    deref(a.AllianceID),
		FactionID:     deref(a.FactionID),
	}
}

// victimAsAttacker synthesizes a pseudo-attacker from the victim so
// targeted leaves can check the victim with the same predicate logic
// used for attackers.
func victimAsAttacker(v killmail.Victim) killmail.Attacker {
	return killmail.Attacker{
		CharacterID:   v.CharacterID,
		CorporationID: v.CorporationID,
		AllianceID:    v.AllianceID,
		FactionID:     v.FactionID,
		ShipTypeID:    &v.ShipTypeID,
	}
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func (k AttackerKey) String() string {
	parts := make([]string, 0, 6)
	add := func(prefix string, id int64) {
		if id != 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", prefix, id))
		}
	}
	add("ship", k.ShipTypeID)
	add("weapon", k.WeaponTypeID)
	add("char", k.CharacterID)
	add("corp", k.CorporationID)
	add("alliance", k.AllianceID)
	add("faction", k.FactionID)
	return strings.Join(parts, "|")
}

// KeySet is a set of AttackerKeys.
type KeySet map[AttackerKey]struct{}

// allAttackerKeys returns the key set for every attacker on the killmail.
func allAttackerKeys(event *killmail.Event) KeySet {
	s := make(KeySet, len(event.Attackers))
	for _, a := range event.Attackers {
		s[NewAttackerKey(a)] = struct{}{}
	}
	return s
}

func union(a, b KeySet) KeySet {
	out := make(KeySet, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func intersect(a, b KeySet) KeySet {
	out := make(KeySet, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func subtract(a, b KeySet) KeySet {
	out := make(KeySet, len(a))
	for k := range a {
		if _, ok := b[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}
