// Package status exposes the ingest loop's health and metrics over
// HTTP, Huma-wrapped over a chi mux.
package status

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"killfeed/internal/ingest"
	"killfeed/pkg/module"
)

// Output is the /status response body.
type Output struct {
	Body struct {
		State         string `json:"state"`
		QueueID       string `json:"queue_id"`
		TotalPolls    int64  `json:"total_polls"`
		NullResponses int64  `json:"null_responses"`
		EventsFound   int64  `json:"events_found"`
		HTTPErrors    int64  `json:"http_errors"`
		ParseErrors   int64  `json:"parse_errors"`
		HTMLResponses int64  `json:"html_responses"`
		LastKillID    int64  `json:"last_kill_id"`
	}
}

type getStatusInput struct{}

// Module registers the status surface on a chi mux.
type Module struct {
	*module.BaseModule
	loop *ingest.Loop
}

// New builds a Module reading from loop.
func New(loop *ingest.Loop) *Module {
	return &Module{BaseModule: module.NewBaseModule("status"), loop: loop}
}

// Routes registers the status endpoint under a Huma API on r.
func (m *Module) Routes(r chi.Router) {
	config := huma.DefaultConfig("killfeed", "1.0.0")
	api := humachi.New(r, config)

	huma.Register(api, huma.Operation{
		OperationID: "getIngestStatus",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Get ingest loop status",
		Description: "Returns the current state and metrics of the killmail ingest loop.",
		Tags:        []string{"Status"},
	}, m.getStatus)
}

// Mount builds a standalone chi router with Routes registered.
func (m *Module) Mount() http.Handler {
	router := chi.NewRouter()
	m.Routes(router)
	return router
}

func (m *Module) getStatus(ctx context.Context, _ *getStatusInput) (*Output, error) {
	snap := m.loop.Snapshot()

	var out Output
	out.Body.State = m.loop.State().String()
	out.Body.QueueID = m.loop.QueueID()
	out.Body.TotalPolls = snap.TotalPolls
	out.Body.NullResponses = snap.NullResponses
	out.Body.EventsFound = snap.EventsFound
	out.Body.HTTPErrors = snap.HTTPErrors
	out.Body.ParseErrors = snap.ParseErrors
	out.Body.HTMLResponses = snap.HTMLResponses
	out.Body.LastKillID = snap.LastKillID
	return &out, nil
}
