package enrichment

import (
	"context"
	"fmt"
	"path/filepath"

	"killfeed/internal/enrichment/catalog"
	"killfeed/internal/filter"
)

// Enrichment aggregates the five JSON-file-backed catalogs, the
// celestial LRU, and the standings provider behind one surface, so the
// filter evaluator and display selector depend on a single type rather
// than wiring five Map instances individually.
type Enrichment struct {
	systems         *Map[int64, catalog.System]
	shipGroups      *Map[int64, int64]
	names           *Map[int64, string]
	corpTickers     *Map[int64, string]
	allianceTickers *Map[int64, string]
	celestials      *CelestialCache
	standings       StandingsProvider
}

// New constructs the full enrichment layer, backed by JSON files under
// configDir and the given catalog client. standings may be nil, in
// which case IgnoreHighStanding never vetoes anything.
func New(configDir string, client catalog.Client, standings StandingsProvider) (*Enrichment, error) {
	systems, err := NewMap[int64, catalog.System]("systems", filepath.Join(configDir, "systems.json"),
		func(ctx context.Context, id int64) (catalog.System, error) { return client.GetSystem(ctx, id) })
	if err != nil {
		return nil, fmt.Errorf("enrichment: %w", err)
	}

	shipGroups, err := NewMap[int64, int64]("ships", filepath.Join(configDir, "ships.json"),
		func(ctx context.Context, id int64) (int64, error) { return client.GetShipGroupID(ctx, id) })
	if err != nil {
		return nil, fmt.Errorf("enrichment: %w", err)
	}

	names, err := NewMap[int64, string]("names", filepath.Join(configDir, "names.json"),
		func(ctx context.Context, id int64) (string, error) { return client.GetName(ctx, id) })
	if err != nil {
		return nil, fmt.Errorf("enrichment: %w", err)
	}

	// Corp and alliance ids resolve through distinct ESI endpoints, and
	// a Map is tied to one FetchFunc at construction, so tickers get two
	// backing files rather than one.
	corpTickers, err := NewMap[int64, string]("corp_tickers", filepath.Join(configDir, "tickers_corp.json"),
		func(ctx context.Context, id int64) (string, error) { return client.GetTicker(ctx, id, false) })
	if err != nil {
		return nil, fmt.Errorf("enrichment: %w", err)
	}

	allianceTickers, err := NewMap[int64, string]("alliance_tickers", filepath.Join(configDir, "tickers_alliance.json"),
		func(ctx context.Context, id int64) (string, error) { return client.GetTicker(ctx, id, true) })
	if err != nil {
		return nil, fmt.Errorf("enrichment: %w", err)
	}

	celestials := NewCelestialCache(func(ctx context.Context, systemID int64, x, y, z float64) (Celestial, error) {
		c, err := client.GetCelestial(ctx, systemID, x, y, z)
		if err != nil {
			return Celestial{}, err
		}
		return Celestial{ItemID: c.ItemID, ItemName: c.ItemName, Distance: c.Distance}, nil
	})

	if standings == nil {
		standings = noStandings{}
	}

	return &Enrichment{
		systems:         systems,
		shipGroups:      shipGroups,
		names:           names,
		corpTickers:     corpTickers,
		allianceTickers: allianceTickers,
		celestials:      celestials,
		standings:       standings,
	}, nil
}

// GetSystem resolves a system id to the subset of its record the
// filter evaluator needs. Use GetSystemFull for the complete catalog
// record (region name, display name) needed by the display selector.
func (e *Enrichment) GetSystem(ctx context.Context, systemID int64) (filter.SystemInfo, error) {
	sys, err := e.systems.Get(ctx, systemID)
	if err != nil {
		return filter.SystemInfo{}, err
	}
	return filter.SystemInfo{RegionID: sys.RegionID, Security: sys.Security, X: sys.X, Y: sys.Y, Z: sys.Z}, nil
}

// GetSystemFull resolves a system id to its full catalog record.
func (e *Enrichment) GetSystemFull(ctx context.Context, systemID int64) (catalog.System, error) {
	return e.systems.Get(ctx, systemID)
}

// GetShipGroupID resolves a type id to its group id.
func (e *Enrichment) GetShipGroupID(ctx context.Context, typeID int64) (int64, error) {
	return e.shipGroups.Get(ctx, typeID)
}

// GetName resolves an entity id to its display name.
func (e *Enrichment) GetName(ctx context.Context, entityID int64) (string, error) {
	return e.names.Get(ctx, entityID)
}

// GetTicker resolves a corporation or alliance id to its ticker,
// querying the matching map for isAlliance.
func (e *Enrichment) GetTicker(ctx context.Context, entityID int64, isAlliance bool) (string, error) {
	if isAlliance {
		return e.allianceTickers.Get(ctx, entityID)
	}
	return e.corpTickers.Get(ctx, entityID)
}

// GetCelestial resolves the nearest celestial body for a system.
func (e *Enrichment) GetCelestial(ctx context.Context, systemID int64, x, y, z float64) (Celestial, error) {
	return e.celestials.Get(ctx, systemID, x, y, z)
}

// IsBlue reports whether any id in idsOfInterest is blue to userID's
// named subject entity, per the IgnoreHighStanding veto semantics.
func (e *Enrichment) IsBlue(userID int64, source filter.StandingSource, sourceEntityID int64, idsOfInterest []int64) (bool, error) {
	return e.standings.IsBlue(userID, source, sourceEntityID, idsOfInterest)
}

type noStandings struct{}

func (noStandings) IsBlue(int64, filter.StandingSource, int64, []int64) (bool, error) { return false, nil }
