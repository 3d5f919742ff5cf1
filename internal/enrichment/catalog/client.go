// Package catalog implements the thin HTTP client over the upstream
// universe/names catalog services.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// System is the assembled system/constellation/region record.
type System struct {
	SystemID   int64   `json:"system_id"`
	Name       string  `json:"name"`
	RegionID   int64   `json:"region_id"`
	RegionName string  `json:"region_name"`
	Security   float64 `json:"security"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
}

// Celestial is the nearest-celestial-body lookup result for a system.
// The aux service's key casing is preserved as-is.
type Celestial struct {
	ItemID   int64   `json:"itemid"`
	TypeID   int64   `json:"typeid"`
	ItemName string  `json:"itemName"`
	Distance float64 `json:"distance"`
}

// Client is the upstream catalog contract. No retries: the caller
// controls request lifetime via ctx, and a failed call is a hard
// upstream error, not something this layer papers over.
type Client interface {
	GetSystem(ctx context.Context, systemID int64) (System, error)
	GetShipGroupID(ctx context.Context, typeID int64) (int64, error)
	GetName(ctx context.Context, entityID int64) (string, error)
	GetTicker(ctx context.Context, entityID int64, isAlliance bool) (string, error)
	GetCelestial(ctx context.Context, systemID int64, x, y, z float64) (Celestial, error)
}

// HTTPClient is the concrete Client over the public ESI-shaped universe
// and names endpoints, plus the auxiliary nearest-celestial service.
type HTTPClient struct {
	httpClient   *http.Client
	baseURL      string
	celestialURL string
	userAgent    string
}

// NewHTTPClient builds a Client whose underlying http.Client is
// expected to already be instrumented with otelhttp.NewTransport by
// the caller, like every other outbound client in the process.
// celestialURL is the root of the auxiliary nearestCelestial.php
// service, which lives on a different host than the catalog proper.
func NewHTTPClient(httpClient *http.Client, baseURL, celestialURL, userAgent string) *HTTPClient {
	return &HTTPClient{httpClient: httpClient, baseURL: baseURL, celestialURL: celestialURL, userAgent: userAgent}
}

type systemESI struct {
	SystemID        int64   `json:"system_id"`
	Name            string  `json:"name"`
	ConstellationID int64   `json:"constellation_id"`
	SecurityStatus  float64 `json:"security_status"`
	Position        struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	} `json:"position"`
}

type constellationESI struct {
	RegionID int64 `json:"region_id"`
}

type regionESI struct {
	Name string `json:"name"`
}

// GetSystem performs three sequential GETs (system, constellation,
// region) and assembles the combined record.
func (c *HTTPClient) GetSystem(ctx context.Context, systemID int64) (System, error) {
	tracer := otel.Tracer("killfeed/catalog")
	ctx, span := tracer.Start(ctx, "GetSystem", trace.WithAttributes(attribute.Int64("system_id", systemID)))
	defer span.End()

	var sys systemESI
	if err := c.getJSON(ctx, fmt.Sprintf("%s/universe/systems/%d/", c.baseURL, systemID), &sys); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "system lookup failed")
		return System{}, fmt.Errorf("catalog: get system %d: %w", systemID, err)
	}

	var constellation constellationESI
	if err := c.getJSON(ctx, fmt.Sprintf("%s/universe/constellations/%d/", c.baseURL, sys.ConstellationID), &constellation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "constellation lookup failed")
		return System{}, fmt.Errorf("catalog: get constellation %d: %w", sys.ConstellationID, err)
	}

	var region regionESI
	if err := c.getJSON(ctx, fmt.Sprintf("%s/universe/regions/%d/", c.baseURL, constellation.RegionID), &region); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "region lookup failed")
		return System{}, fmt.Errorf("catalog: get region %d: %w", constellation.RegionID, err)
	}

	span.SetStatus(codes.Ok, "")
	return System{
		SystemID:   sys.SystemID,
		Name:       sys.Name,
		RegionID:   constellation.RegionID,
		RegionName: region.Name,
		Security:   sys.SecurityStatus,
		X:          sys.Position.X,
		Y:          sys.Position.Y,
		Z:          sys.Position.Z,
	}, nil
}

// GetShipGroupID resolves a type id to its group id.
func (c *HTTPClient) GetShipGroupID(ctx context.Context, typeID int64) (int64, error) {
	tracer := otel.Tracer("killfeed/catalog")
	ctx, span := tracer.Start(ctx, "GetShipGroupID", trace.WithAttributes(attribute.Int64("type_id", typeID)))
	defer span.End()

	var t struct {
		GroupID int64 `json:"group_id"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/universe/types/%d/", c.baseURL, typeID), &t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "type lookup failed")
		return 0, fmt.Errorf("catalog: get type %d: %w", typeID, err)
	}
	span.SetStatus(codes.Ok, "")
	return t.GroupID, nil
}

type namesRequest []int64

type nameEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// GetName POSTs a single-element id array to the bulk-names endpoint.
func (c *HTTPClient) GetName(ctx context.Context, entityID int64) (string, error) {
	tracer := otel.Tracer("killfeed/catalog")
	ctx, span := tracer.Start(ctx, "GetName", trace.WithAttributes(attribute.Int64("entity_id", entityID)))
	defer span.End()

	entries, err := c.postNames(ctx, fmt.Sprintf("%s/universe/names/", c.baseURL), namesRequest{entityID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "names lookup failed")
		return "", fmt.Errorf("catalog: get name %d: %w", entityID, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("catalog: get name %d: empty response", entityID)
	}
	span.SetStatus(codes.Ok, "")
	return entries[0].Name, nil
}

// GetTicker resolves a corporation or alliance id to its ticker.
// alliances/{id}/ and corporations/{id}/ are distinct endpoints,
// selected by isAlliance.
func (c *HTTPClient) GetTicker(ctx context.Context, entityID int64, isAlliance bool) (string, error) {
	tracer := otel.Tracer("killfeed/catalog")
	ctx, span := tracer.Start(ctx, "GetTicker", trace.WithAttributes(
		attribute.Int64("entity_id", entityID), attribute.Bool("is_alliance", isAlliance)))
	defer span.End()

	segment := "corporations"
	if isAlliance {
		segment = "alliances"
	}

	var t struct {
		Ticker string `json:"ticker"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/%d/", c.baseURL, segment, entityID), &t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticker lookup failed")
		return "", fmt.Errorf("catalog: get ticker %d: %w", entityID, err)
	}
	span.SetStatus(codes.Ok, "")
	return t.Ticker, nil
}

// GetCelestial finds the nearest celestial body to (x, y, z) in systemID.
func (c *HTTPClient) GetCelestial(ctx context.Context, systemID int64, x, y, z float64) (Celestial, error) {
	tracer := otel.Tracer("killfeed/catalog")
	ctx, span := tracer.Start(ctx, "GetCelestial", trace.WithAttributes(attribute.Int64("system_id", systemID)))
	defer span.End()

	url := fmt.Sprintf("%s/nearestCelestial.php?solarsystemid=%d&x=%f&y=%f&z=%f", c.celestialURL, systemID, x, y, z)
	var cel Celestial
	if err := c.getJSON(ctx, url, &cel); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "celestial lookup failed")
		return Celestial{}, fmt.Errorf("catalog: get celestial for system %d: %w", systemID, err)
	}
	span.SetStatus(codes.Ok, "")
	return cel, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("non-2xx status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) postNames(ctx context.Context, url string, ids namesRequest) ([]nameEntry, error) {
	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("non-2xx status %d: %s", resp.StatusCode, string(body))
	}

	var entries []nameEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return entries, nil
}
