package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"killfeed/internal/display"
	"killfeed/internal/enrichment"
	"killfeed/internal/enrichment/catalog"
	"killfeed/internal/errs"
	"killfeed/internal/filter"
	"killfeed/internal/killmail"
	"killfeed/internal/subscription"
)

// pingDebounce is the minimum interval between pinging messages sent to
// the same channel, regardless of ping policy.
const pingDebounce = 300 * time.Second

// GatewayError carries an HTTP-shaped status code from the chat
// gateway so the notifier can classify cleanup vs transient failures
// without the gateway needing to know about errs.ErrCleanupChannel.
type GatewayError struct {
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("chat gateway: status %d: %v", e.StatusCode, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ChatGateway delivers a rendered message to a channel. DiscordGateway
// is the production implementation; tests use a fake recording calls
// and returning *GatewayError for 403/404/5xx.
type ChatGateway interface {
	SendMessage(ctx context.Context, channelID string, content string, embed *Embed) error
}

// Enrichment is the subset the notifier needs to resolve display
// strings (system/region names, fleet ticker breakdown, nearest
// celestial).
type Enrichment interface {
	display.Enrichment
	GetSystemFull(ctx context.Context, systemID int64) (catalog.System, error)
	GetName(ctx context.Context, entityID int64) (string, error)
	GetCelestial(ctx context.Context, systemID int64, x, y, z float64) (enrichment.Celestial, error)
}

// CleanupStore is the subset of subscription.Store the notifier needs
// to remove every subscription on a channel the gateway reports gone.
type CleanupStore interface {
	RemoveByChannel(channelID string) error
}

// Notifier renders matched events into embeds and delivers them,
// debouncing ping prefixes per channel and triggering channel cleanup
// on 403/404 gateway responses.
type Notifier struct {
	gateway    ChatGateway
	enrichment Enrichment
	store      CleanupStore

	mu       sync.Mutex
	lastPing map[string]time.Time
}

// New builds a Notifier.
func New(gateway ChatGateway, enrichment Enrichment, store CleanupStore) *Notifier {
	return &Notifier{
		gateway:    gateway,
		enrichment: enrichment,
		store:      store,
		lastPing:   make(map[string]time.Time),
	}
}

// Deliver renders the embed for a matched event and sends it to the
// subscription's channel, applying the ping policy and debounce.
func (n *Notifier) Deliver(ctx context.Context, sub subscription.Subscription, event *killmail.Event, result *filter.MatchResult, best *display.BestEntity, fleet display.FleetComposition) error {
	systemName, regionName := n.resolveLocation(ctx, event.SolarSystemID)
	victimShipName, _ := n.enrichment.GetName(ctx, event.Victim.ShipTypeID)
	victimCharDisplay := n.victimDisplay(ctx, event.Victim)
	breakdown := fleet.FormatAffiliationBreakdown(ctx, n.enrichment)
	celestialLine := n.celestialLine(ctx, event)

	rangeFrom := ""
	if result.LYRange != nil && result.LYRange.Distance > 0 {
		rangeFrom = "Unknown System"
		if sys, err := n.enrichment.GetSystemFull(ctx, result.LYRange.SystemID); err == nil {
			rangeFrom = sys.Name
		}
	}

	embed := BuildEmbed(event, result, best, fleet, systemName, regionName, victimShipName, victimCharDisplay, breakdown, celestialLine, rangeFrom)

	content := n.pingContent(sub, event)

	err := n.gateway.SendMessage(ctx, sub.Action.ChannelID, content, embed)
	if err == nil {
		return nil
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) && (gwErr.StatusCode == http.StatusForbidden || gwErr.StatusCode == http.StatusNotFound) {
		// Cleanup is channel-wide: every subscription of every tenant
		// that targets this channel is removed, not only sub.
		slog.Warn("notifier: channel gone, cleaning up subscriptions", "channel", sub.Action.ChannelID, "status", gwErr.StatusCode)
		if rmErr := n.store.RemoveByChannel(sub.Action.ChannelID); rmErr != nil {
			slog.Error("notifier: cleanup failed", "channel", sub.Action.ChannelID, "error", rmErr)
		}
		return fmt.Errorf("%w: %v", errs.ErrCleanupChannel, err)
	}

	slog.Warn("notifier: transient delivery failure", "channel", sub.Action.ChannelID, "error", err)
	return fmt.Errorf("%w: %v", errs.ErrNotifierTransient, err)
}

// pingContent renders the leading ping prefix for a subscription's
// policy, respecting the per-channel debounce and the policy's max-age
// gate (0 means no age gate). The debounce clock is shared across every
// subscription targeting the same channel.
func (n *Notifier) pingContent(sub subscription.Subscription, event *killmail.Event) string {
	policy := sub.Action.PingPolicy
	if policy == nil || policy.Action == subscription.PingNone {
		return ""
	}

	if policy.MaxPingDelayMinutes > 0 {
		age := time.Since(event.KillmailTime)
		if age > time.Duration(policy.MaxPingDelayMinutes)*time.Minute {
			return ""
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	last, seen := n.lastPing[sub.Action.ChannelID]
	if seen && time.Since(last) < pingDebounce {
		return ""
	}

	n.lastPing[sub.Action.ChannelID] = time.Now()

	switch policy.Action {
	case subscription.PingHere:
		return "@here"
	case subscription.PingEveryone:
		return "@everyone"
	default:
		return ""
	}
}

// celestialLine resolves the nearest celestial to the victim's final
// position, or "" when the event carries no position or the lookup
// misses.
func (n *Notifier) celestialLine(ctx context.Context, event *killmail.Event) string {
	pos := event.Victim.Position
	if pos == nil {
		return ""
	}
	cel, err := n.enrichment.GetCelestial(ctx, event.SolarSystemID, pos.X, pos.Y, pos.Z)
	if err != nil {
		return ""
	}
	return formatCelestialLine(cel)
}

func (n *Notifier) resolveLocation(ctx context.Context, systemID int64) (systemName, regionName string) {
	sys, err := n.enrichment.GetSystemFull(ctx, systemID)
	if err != nil {
		return "Unknown System", "Unknown Region"
	}
	return sys.Name, sys.RegionName
}

func (n *Notifier) victimDisplay(ctx context.Context, victim killmail.Victim) string {
	name := "Unknown Pilot"
	if victim.CharacterID != nil {
		if resolved, err := n.enrichment.GetName(ctx, *victim.CharacterID); err == nil && resolved != "" {
			name = resolved
		}
	}

	ticker := ""
	switch {
	case victim.AllianceID != nil:
		if t, err := n.enrichment.GetTicker(ctx, *victim.AllianceID, true); err == nil && t != "" {
			ticker = t
		}
	case victim.CorporationID != nil:
		if t, err := n.enrichment.GetTicker(ctx, *victim.CorporationID, false); err == nil && t != "" {
			ticker = t
		}
	}

	if ticker == "" {
		return name
	}
	return fmt.Sprintf("[%s] %s", ticker, name)
}
