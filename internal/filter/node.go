// Package filter implements the recursive boolic filter language: its
// tree of nodes, the veto partitioner, and the post-order evaluator.
package filter

import (
	"encoding/json"
	"fmt"
)

// Target scopes a targeted predicate to the victim, the attackers, or
// either.
type Target string

const (
	TargetAny      Target = "Any"
	TargetAttacker Target = "Attacker"
	TargetVictim   Target = "Victim"
)

func (t Target) matchesAttacker() bool { return t == TargetAny || t == TargetAttacker }
func (t Target) matchesVictim() bool   { return t == TargetAny || t == TargetVictim }

// StandingSource names the kind of entity IgnoreHighStanding's subject
// is identified by.
type StandingSource string

const (
	StandingChar     StandingSource = "Char"
	StandingCorp     StandingSource = "Corp"
	StandingAlliance StandingSource = "Alliance"
)

// SystemRange is one {system, max_ly} entry of a LyRangeFrom predicate.
type SystemRange struct {
	SystemID int64   `json:"system_id"`
	MaxLY    float64 `json:"max_ly"`
}

// SimpleKind enumerates the whole-event predicate families.
type SimpleKind string

const (
	KindTotalValue         SimpleKind = "TotalValue"
	KindDroppedValue       SimpleKind = "DroppedValue"
	KindRegion             SimpleKind = "Region"
	KindSystem             SimpleKind = "System"
	KindSecurity           SimpleKind = "Security"
	KindLyRangeFrom        SimpleKind = "LyRangeFrom"
	KindIsNpc              SimpleKind = "IsNpc"
	KindIsSolo             SimpleKind = "IsSolo"
	KindPilots             SimpleKind = "Pilots"
	KindTimeRange          SimpleKind = "TimeRange"
	KindIgnoreHighStanding SimpleKind = "IgnoreHighStanding"
)

// TargetedKind enumerates the per-actor predicate families.
type TargetedKind string

const (
	KindAlliance     TargetedKind = "Alliance"
	KindCorporation  TargetedKind = "Corporation"
	KindCharacter    TargetedKind = "Character"
	KindShipType     TargetedKind = "ShipType"
	KindShipGroup    TargetedKind = "ShipGroup"
	KindNameFragment TargetedKind = "NameFragment"
)

// SimpleFilter is a whole-event predicate. Exactly the fields relevant
// to Kind are populated; the rest are zero.
type SimpleFilter struct {
	Kind SimpleKind `json:"kind"`

	MinValue *uint64 `json:"min,omitempty"` // TotalValue / DroppedValue
	MaxValue *uint64 `json:"max,omitempty"`

	IDs []int64 `json:"ids,omitempty"` // Region / System

	SecurityMin float64 `json:"security_min,omitempty"` // Security
	SecurityMax float64 `json:"security_max,omitempty"`

	LYRanges []SystemRange `json:"ly_ranges,omitempty"` // LyRangeFrom

	Bool bool `json:"bool,omitempty"` // IsNpc / IsSolo

	MinPilots *uint32 `json:"min_pilots,omitempty"` // Pilots
	MaxPilots *uint32 `json:"max_pilots,omitempty"`

	StartHour uint8 `json:"start_hour,omitempty"` // TimeRange
	EndHour   uint8 `json:"end_hour,omitempty"`

	StandingUserID    int64          `json:"standing_user_id,omitempty"` // IgnoreHighStanding
	StandingSource    StandingSource `json:"standing_source,omitempty"`
	StandingSubjectID int64          `json:"standing_subject_id,omitempty"`
}

// TargetedFilter is a per-actor predicate restricted to victim,
// attackers, or either.
type TargetedFilter struct {
	Kind TargetedKind `json:"kind"`
	IDs  []int64      `json:"ids,omitempty"` // Alliance/Corporation/Character/ShipType/ShipGroup

	NameFragment string `json:"name_fragment,omitempty"` // NameFragment

	Target Target `json:"target"`
}

// Filter is a leaf predicate: exactly one of Simple or Targeted is set.
type Filter struct {
	Simple   *SimpleFilter
	Targeted *TargetedFilter
}

// filterWire is the on-disk discriminated shape: {"family":"Simple"|"Targeted", ...}.
type filterWire struct {
	Family   string          `json:"family"`
	Simple   *SimpleFilter   `json:"simple,omitempty"`
	Targeted *TargetedFilter `json:"targeted,omitempty"`
}

func (f Filter) MarshalJSON() ([]byte, error) {
	switch {
	case f.Simple != nil:
		return json.Marshal(filterWire{Family: "Simple", Simple: f.Simple})
	case f.Targeted != nil:
		return json.Marshal(filterWire{Family: "Targeted", Targeted: f.Targeted})
	default:
		return nil, fmt.Errorf("filter: neither Simple nor Targeted set")
	}
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var wire filterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Family {
	case "Simple":
		f.Simple = wire.Simple
	case "Targeted":
		f.Targeted = wire.Targeted
	default:
		return fmt.Errorf("filter: unknown family %q", wire.Family)
	}
	return nil
}

// NodeType discriminates the recursive FilterNode sum type.
type NodeType string

const (
	NodeCondition NodeType = "Condition"
	NodeAnd       NodeType = "And"
	NodeOr        NodeType = "Or"
	NodeNot       NodeType = "Not"
)

// Node is one node of the recursive filter tree: a Condition leaf, an
// And/Or combinator over a child list, or a Not over a single child.
type Node struct {
	Type NodeType

	Filter   *Filter // Condition
	Children []*Node // And / Or
	Child    *Node   // Not
}

type nodeWire struct {
	Type   NodeType `json:"type"`
	Filter *Filter  `json:"filter,omitempty"`
	Nodes  []*Node  `json:"nodes,omitempty"`
	Node   *Node    `json:"node,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Type {
	case NodeCondition:
		return json.Marshal(nodeWire{Type: NodeCondition, Filter: n.Filter})
	case NodeAnd, NodeOr:
		return json.Marshal(nodeWire{Type: n.Type, Nodes: n.Children})
	case NodeNot:
		return json.Marshal(nodeWire{Type: NodeNot, Node: n.Child})
	default:
		return nil, fmt.Errorf("filter node: unknown type %q", n.Type)
	}
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var wire nodeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	n.Type = wire.Type
	switch wire.Type {
	case NodeCondition:
		n.Filter = wire.Filter
	case NodeAnd, NodeOr:
		n.Children = wire.Nodes
	case NodeNot:
		n.Child = wire.Node
	default:
		return fmt.Errorf("filter node: unknown type %q", wire.Type)
	}
	return nil
}

// Condition builds a Condition leaf node.
func Condition(f Filter) *Node { return &Node{Type: NodeCondition, Filter: &f} }

// And builds an And combinator node.
func And(children ...*Node) *Node { return &Node{Type: NodeAnd, Children: children} }

// Or builds an Or combinator node.
func Or(children ...*Node) *Node { return &Node{Type: NodeOr, Children: children} }

// Not builds a Not combinator node.
func Not(child *Node) *Node { return &Node{Type: NodeNot, Child: child} }
