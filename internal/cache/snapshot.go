package cache

import (
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/housenumber"
	"github.com/akquise-tool/internal/normalize"
	"github.com/akquise-tool/internal/record"
)

// DefaultLimit bounds result sizes when callers pass no limit of their own.
const DefaultLimit = 50

// Snapshot is an immutable index of customers and datasets keyed by their
// normalized address. A snapshot is built once and then only read, so
// lookups need no locking.
type Snapshot struct {
	builtAt    time.Time
	customers  map[string][]record.Customer
	datasets   map[string][]record.Dataset
	nCustomers int
	nDatasets  int
}

// NewSnapshot indexes the given rows. Rows failing validation or indexing
// under a street-less key are logged and skipped. Buckets are sorted most
// recent first at build time.
func NewSnapshot(customers []record.Customer, datasets []record.Dataset) *Snapshot {
	s := &Snapshot{
		builtAt:   time.Now(),
		customers: make(map[string][]record.Customer),
		datasets:  make(map[string][]record.Dataset),
	}

	for _, c := range customers {
		if err := c.Validate(); err != nil {
			log.WithError(err).WithField("id", c.ID).Warn("skipping customer row")
			continue
		}
		key := c.Key()
		if !normalize.HasStreet(key) {
			log.WithField("id", c.ID).Warn("skipping customer row with street-less address key")
			continue
		}
		s.customers[key] = append(s.customers[key], c)
		s.nCustomers++
	}

	for _, d := range datasets {
		if err := d.Validate(); err != nil {
			log.WithError(err).WithField("id", d.ID).Warn("skipping dataset row")
			continue
		}
		s.datasets[d.Key()] = append(s.datasets[d.Key()], d)
		s.nDatasets++
	}

	for _, bucket := range s.customers {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].UpdatedAt.After(bucket[j].UpdatedAt)
		})
	}
	for _, bucket := range s.datasets {
		sortDatasets(bucket)
	}

	return s
}

// BuiltAt returns when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Counts returns how many customers and datasets the snapshot indexes.
func (s *Snapshot) Counts() (customers, datasets int) {
	return s.nCustomers, s.nDatasets
}

// CustomersAt returns the customers recorded at the queried address key,
// most recent first and deduplicated by id. A non-empty houseExpr restricts
// the result to records whose house numbers overlap the expression; an
// empty houseExpr skips house number filtering entirely. A zero limit
// selects DefaultLimit, a negative limit disables truncation.
func (s *Snapshot) CustomersAt(key, houseExpr string, limit int) []record.Customer {
	if !normalize.HasStreet(key) {
		log.WithField("key", key).Warn("rejecting customer lookup with street-less address key")
		return nil
	}

	limit = effectiveLimit(limit)
	filterByHouse := strings.TrimSpace(houseExpr) != ""
	var query housenumber.Set
	if filterByHouse {
		query = housenumber.Expand(houseExpr)
	}

	seen := make(map[string]struct{})
	var out []record.Customer
	for _, c := range s.customers[key] {
		if filterByHouse && !query.Intersects(housenumber.Expand(c.HouseNumber)) {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// DatasetsAt returns the datasets recorded at the queried address key, with
// the same filtering, deduplication and limit semantics as CustomersAt.
func (s *Snapshot) DatasetsAt(key, houseExpr string, limit int) []record.Dataset {
	if !normalize.HasStreet(key) {
		log.WithField("key", key).Warn("rejecting dataset lookup with street-less address key")
		return nil
	}

	limit = effectiveLimit(limit)
	filterByHouse := strings.TrimSpace(houseExpr) != ""
	var query housenumber.Set
	if filterByHouse {
		query = housenumber.Expand(houseExpr)
	}

	seen := make(map[string]struct{})
	var out []record.Dataset
	for _, d := range s.datasets[key] {
		if filterByHouse && !query.Intersects(housenumber.Expand(d.HouseNumber)) {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// withDataset returns a copy of the snapshot with the dataset added to its
// bucket. The receiver stays untouched; customer buckets are shared since
// they never change on this path.
func (s *Snapshot) withDataset(d record.Dataset) *Snapshot {
	next := &Snapshot{
		builtAt:    s.builtAt,
		customers:  s.customers,
		datasets:   make(map[string][]record.Dataset, len(s.datasets)+1),
		nCustomers: s.nCustomers,
		nDatasets:  s.nDatasets + 1,
	}
	for key, bucket := range s.datasets {
		next.datasets[key] = bucket
	}

	key := d.Key()
	bucket := make([]record.Dataset, 0, len(s.datasets[key])+1)
	bucket = append(bucket, d)
	bucket = append(bucket, s.datasets[key]...)
	sortDatasets(bucket)
	next.datasets[key] = bucket

	return next
}

func sortDatasets(bucket []record.Dataset) {
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].CreatedAt.After(bucket[j].CreatedAt)
	})
}

func effectiveLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 0:
		return 0
	default:
		return limit
	}
}
