package store

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/cache"
	"github.com/akquise-tool/internal/metrics"
	"github.com/akquise-tool/internal/record"
)

// CustomerSource loads the current customer list.
type CustomerSource interface {
	LoadCustomers(ctx context.Context) ([]record.Customer, error)
}

// DatasetSource loads the current dataset list.
type DatasetSource interface {
	LoadDatasets(ctx context.Context) ([]record.Dataset, error)
}

// Refresher rebuilds the cache snapshot from the configured sources. Either
// source may be nil; the corresponding record kind then stays empty. A
// failing source aborts the refresh and keeps the previous snapshot
// published, so readers never observe a half-loaded cache.
type Refresher struct {
	Customers CustomerSource
	Datasets  DatasetSource
	Cache     *cache.Store
	Metrics   *metrics.Metrics
}

// Refresh loads both sources, builds a fresh snapshot and publishes it.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := time.Now()

	var customers []record.Customer
	var datasets []record.Dataset

	if r.Customers != nil {
		var err error
		customers, err = r.Customers.LoadCustomers(ctx)
		if err != nil {
			r.Metrics.RecordRefresh(0, 0, 0, err)
			return fmt.Errorf("loading customers: %w", err)
		}
	}
	if r.Datasets != nil {
		var err error
		datasets, err = r.Datasets.LoadDatasets(ctx)
		if err != nil {
			r.Metrics.RecordRefresh(0, 0, 0, err)
			return fmt.Errorf("loading datasets: %w", err)
		}
	}

	snap := cache.NewSnapshot(customers, datasets)
	r.Cache.Replace(snap)

	nCustomers, nDatasets := snap.Counts()
	took := time.Since(start)
	r.Metrics.RecordRefresh(took, nCustomers, nDatasets, nil)
	log.WithFields(log.Fields{
		"customers": nCustomers,
		"datasets":  nDatasets,
		"took":      took,
	}).Info("cache refreshed")

	return nil
}
