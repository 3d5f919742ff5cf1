package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"killfeed/internal/display"
	"killfeed/internal/errs"
	"killfeed/internal/filter"
	"killfeed/internal/killmail"
	"killfeed/internal/subscription"
)

// State is the loop's coarse lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateThrottled
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateThrottled:
		return "throttled"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Metrics tracks poll-loop performance, exposed read-only via Snapshot.
type Metrics struct {
	TotalPolls    atomic.Int64
	NullResponses atomic.Int64
	EventsFound   atomic.Int64
	HTTPErrors    atomic.Int64
	ParseErrors   atomic.Int64
	HTMLResponses atomic.Int64
	LastKillID    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics for the status module.
type MetricsSnapshot struct {
	TotalPolls    int64
	NullResponses int64
	EventsFound   int64
	HTTPErrors    int64
	ParseErrors   int64
	HTMLResponses int64
	LastKillID    int64
}

// Notifier is the subset of internal/notifier.Notifier the loop needs.
type Notifier interface {
	Deliver(ctx context.Context, sub subscription.Subscription, event *killmail.Event, result *filter.MatchResult, best *display.BestEntity, fleet display.FleetComposition) error
}

// Enrichment is the subset of internal/enrichment.Enrichment the loop
// needs; it is also accepted as filter.Enrichment and display.Enrichment
// wherever those narrower interfaces are required.
type Enrichment interface {
	filter.Enrichment
	display.Enrichment
}

// Loop polls the long-poll feed, evaluates every tenant's subscriptions
// against each decoded event, and hands matches to the notifier.
type Loop struct {
	httpClient *http.Client
	endpoint   string
	queueID    string
	store      *subscription.Store
	enrichment Enrichment
	notifier   Notifier
	limiter    *rate.Limiter

	mu       sync.RWMutex
	state    atomic.Int32
	running  atomic.Bool
	lastPoll time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	metrics Metrics
}

// Config bundles the loop's construction-time dependencies.
type Config struct {
	HTTPClient *http.Client
	Endpoint   string
	Store      *subscription.Store
	Enrichment Enrichment
	Notifier   Notifier
}

// New builds a Loop with a freshly generated 12-character queue id.
func New(cfg Config) *Loop {
	l := &Loop{
		httpClient: cfg.HTTPClient,
		endpoint:   cfg.Endpoint,
		queueID:    strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		store:      cfg.Store,
		enrichment: cfg.Enrichment,
		notifier:   cfg.Notifier,
		limiter:    rate.NewLimiter(rate.Limit(20), 20),
	}
	l.state.Store(int32(StateStopped))
	return l
}

// Start launches the poll goroutine. Returns an error if already running.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return fmt.Errorf("ingest: loop already running")
	}

	l.state.Store(int32(StateStarting))
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.pollLoop()

	l.running.Store(true)
	l.state.Store(int32(StateRunning))
	slog.Info("ingest loop started", "queue_id", l.queueID, "endpoint", l.endpoint)
	return nil
}

// Stop cancels the poll goroutine and waits up to 30s for it to drain.
func (l *Loop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.Load() {
		return fmt.Errorf("ingest: loop not running")
	}

	l.state.Store(int32(StateDraining))
	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("ingest loop stopped gracefully")
	case <-time.After(30 * time.Second):
		slog.Warn("ingest loop stop timed out draining")
	}

	l.running.Store(false)
	l.state.Store(int32(StateStopped))
	return nil
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// QueueID returns the long-poll queue id this loop was assigned at
// construction.
func (l *Loop) QueueID() string {
	return l.queueID
}

// Snapshot returns a point-in-time copy of the loop's metrics.
func (l *Loop) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TotalPolls:    l.metrics.TotalPolls.Load(),
		NullResponses: l.metrics.NullResponses.Load(),
		EventsFound:   l.metrics.EventsFound.Load(),
		HTTPErrors:    l.metrics.HTTPErrors.Load(),
		ParseErrors:   l.metrics.ParseErrors.Load(),
		HTMLResponses: l.metrics.HTMLResponses.Load(),
		LastKillID:    l.metrics.LastKillID.Load(),
	}
}

func (l *Loop) pollLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
			l.poll()
		}
	}
}

// poll performs one long-poll round-trip and, on a populated package,
// evaluates it against every tenant's subscriptions.
func (l *Loop) poll() {
	l.metrics.TotalPolls.Add(1)
	l.lastPoll = time.Now()

	url := fmt.Sprintf("%s?queueID=%s&ttw=60", l.endpoint, l.queueID)
	req, err := http.NewRequestWithContext(l.ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Error("ingest: build request failed", "error", err)
		l.metrics.HTTPErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		slog.Warn("ingest: poll request failed", "error", fmt.Errorf("%w: %v", errs.ErrUpstream, err))
		l.metrics.HTTPErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("ingest: read body failed", "error", err)
		l.metrics.HTTPErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("ingest: non-200 response", "status", resp.StatusCode)
		l.metrics.HTTPErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}

	if looksLikeHTML(body) {
		slog.Warn("ingest: upstream returned HTML, treating as transient")
		l.metrics.HTMLResponses.Add(1)
		time.Sleep(5 * time.Second)
		return
	}

	var wire redisQResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&wire); err != nil {
		slog.Warn("ingest: decode response failed", "error", err)
		l.metrics.ParseErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}

	if wire.Package == nil {
		l.metrics.NullResponses.Add(1)
		return
	}

	event, err := wire.Package.toEvent()
	if err != nil {
		slog.Warn("ingest: malformed killmail body", "kill_id", wire.Package.KillID, "error", err)
		l.metrics.ParseErrors.Add(1)
		return
	}

	l.metrics.EventsFound.Add(1)
	l.metrics.LastKillID.Store(event.KillID)
	l.dispatch(event)
}

// dispatch fans the event out across every (tenant, subscription) pair
// concurrently, capped by a semaphore. The shared limiter paces the
// start of each subscription's evaluation; catalog calls made inside an
// evaluation are not throttled individually.
func (l *Loop) dispatch(event *killmail.Event) {
	snapshot := l.store.Snapshot()

	g, ctx := errgroup.WithContext(l.ctx)
	g.SetLimit(runtime.GOMAXPROCS(0) * 4)

	for tenant, subs := range snapshot {
		for _, sub := range subs {
			sub := sub
			tenant := tenant
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("ingest: subscription evaluation panicked",
							"tenant", tenant, "subscription", sub.ID, "panic", r)
						err = nil
					}
				}()
				if waitErr := l.limiter.Wait(ctx); waitErr != nil {
					return nil
				}
				l.evaluateOne(ctx, tenant, sub, event)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		slog.Warn("ingest: dispatch group returned error", "error", err)
	}
}

func (l *Loop) evaluateOne(ctx context.Context, tenant subscription.TenantID, sub subscription.Subscription, event *killmail.Event) {
	result, err := filter.EvaluateRule(ctx, sub.Root, event, l.enrichment)
	if err != nil {
		slog.Warn("ingest: rule evaluation failed", "tenant", tenant, "subscription", sub.ID, "error", err)
		return
	}
	if result == nil {
		return
	}

	best := display.SelectBestEntity(ctx, result, event, l.enrichment)
	if best == nil {
		return
	}
	fleet := display.ComputeFleetComposition(ctx, event.Attackers, l.enrichment)

	if err := l.notifier.Deliver(ctx, sub, event, result, best, fleet); err != nil {
		slog.Warn("ingest: delivery failed", "tenant", tenant, "subscription", sub.ID, "channel", sub.Action.ChannelID, "error", err)
	}
}
