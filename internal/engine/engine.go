package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/cache"
	"github.com/akquise-tool/internal/lock"
	"github.com/akquise-tool/internal/metrics"
	"github.com/akquise-tool/internal/normalize"
	"github.com/akquise-tool/internal/record"
)

// DatasetSink persists newly created datasets.
type DatasetSink interface {
	InsertDataset(ctx context.Context, d record.Dataset) error
}

// LockAuditor records lock decisions for reporting. Implementations must
// swallow their own failures; auditing never fails a request.
type LockAuditor interface {
	RecordLockDecision(ctx context.Context, q record.AddressQuery, identity string, d lock.Decision)
}

// Config wires the engine's collaborators. Store is required, everything
// else is optional: without a sink the engine is read-only, without metrics
// or auditor those concerns are skipped.
type Config struct {
	Store   *cache.Store
	Sink    DatasetSink
	Auditor LockAuditor
	Metrics *metrics.Metrics
	Window  time.Duration
}

// Engine combines the record cache with the recency lock policy behind the
// query surface used by the HTTP handlers and the CLI.
type Engine struct {
	store   *cache.Store
	sink    DatasetSink
	auditor LockAuditor
	metrics *metrics.Metrics
	window  time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an engine from the given configuration.
func New(cfg Config) *Engine {
	window := cfg.Window
	if window <= 0 {
		window = lock.DefaultWindow
	}
	return &Engine{
		store:   cfg.Store,
		sink:    cfg.Sink,
		auditor: cfg.Auditor,
		metrics: cfg.Metrics,
		window:  window,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// ErrNoStreet reports an address whose normalized key has no street
// portion. Such a key can neither match nor anchor a dataset, so both the
// lock preview and the creation refuse it.
var ErrNoStreet = errors.New("address has no usable street")

// LockedError is returned by CreateDataset when the recency lock rejects
// the creation. It carries the decision so callers can name the blocking
// agent and visit date.
type LockedError struct {
	Decision lock.Decision
}

func (e *LockedError) Error() string {
	b := e.Decision.Blocking
	if b == nil {
		return "address creation locked"
	}
	return fmt.Sprintf("address already visited by %s on %s", b.CreatedBy, b.CreatedAt.Format("2006-01-02"))
}

// SearchCustomers returns existing customers at the queried address,
// filtered by house number overlap when the query carries an expression.
// Data quality problems degrade to empty results, never errors.
func (e *Engine) SearchCustomers(q record.AddressQuery, limit int) []record.Customer {
	out := e.store.Snapshot().CustomersAt(q.Key(), q.HouseNumber, limit)
	e.metrics.RecordSearch(metrics.KindCustomers, len(out))
	log.WithFields(log.Fields{"key": q.Key(), "house_number": q.HouseNumber, "results": len(out)}).Debug("customer search")
	return out
}

// SearchDatasets returns field visit datasets at the queried address, most
// recent first, with the same matching semantics as SearchCustomers.
func (e *Engine) SearchDatasets(q record.AddressQuery, limit int) []record.Dataset {
	out := e.store.Snapshot().DatasetsAt(q.Key(), q.HouseNumber, limit)
	e.metrics.RecordSearch(metrics.KindDatasets, len(out))
	log.WithFields(log.Fields{"key": q.Key(), "house_number": q.HouseNumber, "results": len(out)}).Debug("dataset search")
	return out
}

// CheckCreationLock decides whether identity may create a new dataset for
// the queried address and house numbers. The decision is advisory; the
// binding re-check happens inside CreateDataset. Identity trimming and the
// street gate mirror CreateDataset, so a preview never contradicts the
// later create.
func (e *Engine) CheckCreationLock(ctx context.Context, q record.AddressQuery, identity string) (lock.Decision, error) {
	identity = strings.TrimSpace(identity)
	if !normalize.HasStreet(q.Key()) {
		return lock.Decision{}, fmt.Errorf("address %q: %w", q.Street, ErrNoStreet)
	}

	decision := e.lockDecision(q, identity)
	e.audit(ctx, q, identity, decision)
	e.metrics.RecordLockDecision(decision.Allowed, decision.Reason)
	return decision, nil
}

// CreateDataset re-checks the recency lock and persists a new dataset built
// from the query and the agent's input. Check and append run under a
// per-address mutex, so two concurrent creations for overlapping house
// numbers cannot both pass the check. The created dataset is published to
// the cache immediately.
func (e *Engine) CreateDataset(ctx context.Context, q record.AddressQuery, identity string, input record.Dataset) (record.Dataset, error) {
	if e.sink == nil {
		return record.Dataset{}, errors.New("dataset creation is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return record.Dataset{}, errors.New("missing agent identity")
	}
	key := q.Key()
	if !normalize.HasStreet(key) {
		return record.Dataset{}, fmt.Errorf("address %q: %w", q.Street, ErrNoStreet)
	}

	unlock := e.lockKey(key)
	defer unlock()

	decision := e.lockDecision(q, identity)
	e.audit(ctx, q, identity, decision)
	e.metrics.RecordLockDecision(decision.Allowed, decision.Reason)
	if !decision.Allowed {
		return record.Dataset{}, &LockedError{Decision: decision}
	}

	d := input
	d.ID = uuid.NewString()
	d.NormalizedAddress = key
	d.HouseNumber = strings.TrimSpace(q.HouseNumber)
	d.Street = q.Street
	d.PostalCode = q.PostalCode
	d.City = q.City
	d.CreatedAt = e.now()
	d.CreatedBy = identity

	if err := e.sink.InsertDataset(ctx, d); err != nil {
		return record.Dataset{}, fmt.Errorf("persisting dataset: %w", err)
	}
	e.store.AppendDataset(d)
	e.metrics.RecordDatasetCreated()

	log.WithFields(log.Fields{"id": d.ID, "key": key, "agent": identity}).Info("dataset created")
	return d, nil
}

// lockDecision evaluates the policy against every matching dataset in the
// current snapshot.
func (e *Engine) lockDecision(q record.AddressQuery, identity string) lock.Decision {
	matches := e.store.Snapshot().DatasetsAt(q.Key(), q.HouseNumber, -1)
	return lock.Evaluate(matches, identity, e.now(), e.window)
}

func (e *Engine) audit(ctx context.Context, q record.AddressQuery, identity string, d lock.Decision) {
	if e.auditor != nil {
		e.auditor.RecordLockDecision(ctx, q, identity, d)
	}
}

// lockKey locks the mutex for an address key and returns its unlock func.
// Entries stay for the life of the process; the map grows with the number
// of distinct addresses created against, not with request volume.
func (e *Engine) lockKey(key string) func() {
	e.mu.Lock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}
