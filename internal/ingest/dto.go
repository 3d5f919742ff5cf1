// Package ingest consumes the upstream long-poll feed and hands each
// decoded event to the subscription/filter/notifier pipeline.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"killfeed/internal/errs"
	"killfeed/internal/killmail"
)

// redisQResponse is the top-level long-poll body: either a null package
// (no kill available this cycle) or one populated package.
type redisQResponse struct {
	Package *redisQPackage `json:"package"`
}

// redisQPackage mirrors the upstream killID/killmail/zkb envelope.
type redisQPackage struct {
	KillID   int64           `json:"killID"`
	Killmail json.RawMessage `json:"killmail"`
	ZKB      zkbBlock        `json:"zkb"`
}

type zkbBlock struct {
	LocationID     int64   `json:"locationID"`
	Hash           string  `json:"hash"`
	FittedValue    float64 `json:"fittedValue"`
	DroppedValue   float64 `json:"droppedValue"`
	DestroyedValue float64 `json:"destroyedValue"`
	TotalValue     float64 `json:"totalValue"`
	Points         int     `json:"points"`
	NPC            bool    `json:"npc"`
	Solo           bool    `json:"solo"`
	Awox           bool    `json:"awox"`
	Href           string  `json:"href"`
}

// wireKillmail is the nested killmail body's shape before flattening
// into killmail.Event.
type wireKillmail struct {
	KillmailTime  string              `json:"killmail_time"`
	SolarSystemID int64               `json:"solar_system_id"`
	Victim        killmail.Victim     `json:"victim"`
	Attackers     []killmail.Attacker `json:"attackers"`
}

// toEvent flattens a decoded package into the in-memory Event shape,
// parsing the ESI-style RFC 3339 timestamp into time.Time. An
// unparseable timestamp is not fatal to the event: it leaves
// KillmailTime zero, which fails time-range predicates only, and every
// other filter still sees the event.
func (p *redisQPackage) toEvent() (*killmail.Event, error) {
	var wk wireKillmail
	if err := json.Unmarshal(p.Killmail, &wk); err != nil {
		return nil, fmt.Errorf("ingest: decode killmail body: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, wk.KillmailTime)
	if err != nil {
		slog.Warn("ingest: killmail timestamp unparseable, time-range predicates will not match",
			"kill_id", p.KillID,
			"error", fmt.Errorf("%w: %q: %v", errs.ErrBadTimestamp, wk.KillmailTime, err))
		ts = time.Time{}
	}

	return &killmail.Event{
		KillID:        p.KillID,
		KillmailTime:  ts,
		SolarSystemID: wk.SolarSystemID,
		Victim:        wk.Victim,
		Attackers:     wk.Attackers,
		ZKB: killmail.Metadata{
			LocationID:     p.ZKB.LocationID,
			Hash:           p.ZKB.Hash,
			FittedValue:    p.ZKB.FittedValue,
			DroppedValue:   p.ZKB.DroppedValue,
			DestroyedValue: p.ZKB.DestroyedValue,
			TotalValue:     p.ZKB.TotalValue,
			Points:         p.ZKB.Points,
			NPC:            p.ZKB.NPC,
			Solo:           p.ZKB.Solo,
			Awox:           p.ZKB.Awox,
			Href:           p.ZKB.Href,
		},
	}, nil
}

// looksLikeHTML reports whether body appears to be an HTML error page
// rather than a JSON long-poll response; the upstream feed occasionally
// serves a maintenance page with a 200 status.
func looksLikeHTML(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '<':
			return true
		default:
			return false
		}
	}
	return false
}
