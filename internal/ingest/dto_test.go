package ingest

import (
	"encoding/json"
	"testing"
)

func TestToEvent_FlattensPackage(t *testing.T) {
	raw := []byte(`{
		"killID": 123,
		"killmail": {
			"killmail_time": "2026-01-01T12:30:00Z",
			"solar_system_id": 30000142,
			"victim": {"ship_type_id": 670, "damage_taken": 500},
			"attackers": [{"character_id": 1001, "damage_done": 500, "final_blow": true}]
		},
		"zkb": {
			"locationID": 50000001,
			"hash": "abc123",
			"totalValue": 1000000,
			"droppedValue": 500000,
			"npc": false,
			"solo": true
		}
	}`)

	var pkg redisQPackage
	if err := json.Unmarshal(raw, &pkg); err != nil {
		t.Fatalf("unmarshal package: %v", err)
	}

	event, err := pkg.toEvent()
	if err != nil {
		t.Fatalf("toEvent: %v", err)
	}

	if event.KillID != 123 {
		t.Errorf("KillID: got %d, want 123", event.KillID)
	}
	if event.SolarSystemID != 30000142 {
		t.Errorf("SolarSystemID: got %d, want 30000142", event.SolarSystemID)
	}
	if event.Victim.ShipTypeID != 670 {
		t.Errorf("Victim.ShipTypeID: got %d, want 670", event.Victim.ShipTypeID)
	}
	if len(event.Attackers) != 1 {
		t.Fatalf("expected 1 attacker, got %d", len(event.Attackers))
	}
	if event.ZKB.Hash != "abc123" {
		t.Errorf("ZKB.Hash: got %q, want abc123", event.ZKB.Hash)
	}
	if event.KillmailTime.Year() != 2026 {
		t.Errorf("expected the RFC3339 timestamp to parse, got %v", event.KillmailTime)
	}
}

func TestToEvent_BadTimestampKeepsEvent(t *testing.T) {
	raw := []byte(`{
		"killID": 1,
		"killmail": {"killmail_time": "not-a-time", "solar_system_id": 1, "victim": {"ship_type_id": 1}},
		"zkb": {}
	}`)

	var pkg redisQPackage
	if err := json.Unmarshal(raw, &pkg); err != nil {
		t.Fatalf("unmarshal package: %v", err)
	}

	event, err := pkg.toEvent()
	if err != nil {
		t.Fatalf("a malformed killmail_time must not drop the event, got error: %v", err)
	}
	if !event.KillmailTime.IsZero() {
		t.Errorf("expected a zero KillmailTime for an unparseable timestamp, got %v", event.KillmailTime)
	}
	if event.SolarSystemID != 1 || event.Victim.ShipTypeID != 1 {
		t.Errorf("expected the rest of the event to survive intact, got %+v", event)
	}
}

func TestToEvent_BadKillmailBodyErrors(t *testing.T) {
	raw := []byte(`{"killID": 1, "killmail": "not-an-object", "zkb": {}}`)

	var pkg redisQPackage
	if err := json.Unmarshal(raw, &pkg); err != nil {
		t.Fatalf("unmarshal package: %v", err)
	}

	if _, err := pkg.toEvent(); err == nil {
		t.Error("expected an undecodable killmail body to produce an error")
	}
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"json object", `{"package": null}`, false},
		{"html page", "<html><body>Maintenance</body></html>", true},
		{"leading whitespace then html", "\n\n  <!DOCTYPE html>", true},
		{"leading whitespace then json", "  \n{\"package\":null}", false},
		{"empty body", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeHTML([]byte(tt.body)); got != tt.want {
				t.Errorf("looksLikeHTML(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestRedisQResponse_NilPackageMeansNoKill(t *testing.T) {
	var resp redisQResponse
	if err := json.Unmarshal([]byte(`{"package": null}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Package != nil {
		t.Error("expected a null package to decode to a nil pointer")
	}
}
