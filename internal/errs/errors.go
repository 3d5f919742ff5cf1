// Package errs holds the sentinel errors shared across the ingest,
// enrichment, subscription and notifier layers, checked with
// errors.Is and wrapped with fmt.Errorf("...: %w", err) at each layer.
package errs

import "errors"

var (
	// ErrUpstream wraps a transport failure talking to the long-poll
	// feed. Non-200 responses are logged with their status code and do
	// not carry it.
	ErrUpstream = errors.New("ingest: upstream request failed")

	// ErrEnrichmentMiss names an unresolved catalog lookup. No lookup in
	// this module returns it: a failed lookup surfaces the catalog or
	// file error itself, and the evaluator treats any lookup error as a
	// soft failure (the predicate does not match).
	ErrEnrichmentMiss = errors.New("enrichment: lookup miss")

	// ErrBadTimestamp marks a killmail whose timestamp could not be
	// parsed.
	ErrBadTimestamp = errors.New("ingest: malformed killmail timestamp")

	// ErrCleanupChannel signals that a chat gateway call failed with
	// 403/404: the channel is gone and every subscription targeting it
	// should be removed.
	ErrCleanupChannel = errors.New("notifier: channel gone, cleanup required")

	// ErrNotifierTransient marks a chat gateway failure that is not a
	// cleanup signal: log and move on, the subscription stays.
	ErrNotifierTransient = errors.New("notifier: transient delivery failure")

	// ErrPersist names a failure writing a subscription or enrichment
	// map file to disk. The store and the maps do not wrap it: the
	// store returns its own wrapped os/json errors and the maps log a
	// persist failure after an insert.
	ErrPersist = errors.New("store: persist failed")
)
