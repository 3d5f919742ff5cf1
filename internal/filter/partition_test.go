package filter

import "testing"

func vetoLeaf() *Node {
	return Condition(Filter{Simple: &SimpleFilter{Kind: KindIgnoreHighStanding, StandingSource: StandingCorp}})
}

func matchLeaf(ids ...int64) *Node {
	return Condition(Filter{Targeted: &TargetedFilter{Kind: KindShipType, IDs: ids, Target: TargetAttacker}})
}

func TestPartition_PlainConditionGoesToMatchTree(t *testing.T) {
	node := matchLeaf(670)
	m, v := Partition(node)
	if m != node {
		t.Errorf("expected the leaf itself as the match tree, got %+v", m)
	}
	if v != nil {
		t.Errorf("expected no veto tree, got %+v", v)
	}
}

func TestPartition_VetoConditionGoesToVetoTree(t *testing.T) {
	node := vetoLeaf()
	m, v := Partition(node)
	if m != nil {
		t.Errorf("expected no match tree, got %+v", m)
	}
	if v != node {
		t.Errorf("expected the leaf itself as the veto tree, got %+v", v)
	}
}

func TestPartition_AndSplitsIntoBothTrees(t *testing.T) {
	root := And(matchLeaf(670), vetoLeaf())
	m, v := Partition(root)

	if m == nil || m.Type != NodeCondition {
		t.Fatalf("expected the single match leaf to be unwrapped, got %+v", m)
	}
	if v == nil || v.Type != NodeCondition {
		t.Fatalf("expected the single veto leaf to be unwrapped, got %+v", v)
	}
}

func TestPartition_AndWithOnlyMatchLeavesHasNilVeto(t *testing.T) {
	root := And(matchLeaf(670), matchLeaf(19720))
	m, v := Partition(root)

	if m == nil || m.Type != NodeAnd || len(m.Children) != 2 {
		t.Fatalf("expected both match leaves preserved under And, got %+v", m)
	}
	if v != nil {
		t.Errorf("expected no veto tree, got %+v", v)
	}
}

func TestPartition_NotWithVetoInsideStaysWholeOnMatchSide(t *testing.T) {
	root := Not(vetoLeaf())
	m, v := Partition(root)

	if v != nil {
		t.Errorf("a Not wrapping veto content must never produce a veto tree, got %+v", v)
	}
	if m != root {
		t.Errorf("a Not wrapping veto content must stay intact on the match side, got %+v", m)
	}
}

func TestPartition_NotWithMatchContentUnwrapsNormally(t *testing.T) {
	root := Not(matchLeaf(670))
	m, v := Partition(root)

	if v != nil {
		t.Errorf("expected no veto tree, got %+v", v)
	}
	if m == nil || m.Type != NodeNot {
		t.Fatalf("expected a rewrapped Not node, got %+v", m)
	}
}

func TestPartition_NilNode(t *testing.T) {
	m, v := Partition(nil)
	if m != nil || v != nil {
		t.Errorf("expected nil, nil for a nil node, got %+v, %+v", m, v)
	}
}

func TestPartition_OrCollapsesSingleSurvivor(t *testing.T) {
	root := Or(matchLeaf(670), vetoLeaf())
	m, v := Partition(root)

	if m == nil || m.Type != NodeCondition {
		t.Fatalf("expected the lone match leaf unwrapped (not left under an Or), got %+v", m)
	}
	if v == nil || v.Type != NodeCondition {
		t.Fatalf("expected the lone veto leaf unwrapped, got %+v", v)
	}
}
