package record

import (
	"errors"
	"strings"

	"github.com/akquise-tool/internal/normalize"
)

// Validation errors for rows arriving from external sources. Rows failing
// validation are logged and skipped at the ingestion boundary instead of
// flowing into the cache.
var (
	ErrMissingID         = errors.New("missing id")
	ErrMissingStreet     = errors.New("missing street")
	ErrMissingPostalCode = errors.New("missing postal code")
	ErrMissingAddressKey = errors.New("missing or street-less address key")
	ErrMissingCreatedAt  = errors.New("missing creation time")
	ErrMissingCreatedBy  = errors.New("missing creator")
)

// Validate reports why a customer row cannot be indexed, or nil.
func (c Customer) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(c.Street) == "" {
		return ErrMissingStreet
	}
	if strings.TrimSpace(c.PostalCode) == "" {
		return ErrMissingPostalCode
	}
	return nil
}

// Validate reports why a dataset row cannot be indexed, or nil.
func (d Dataset) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrMissingID
	}
	if !normalize.HasStreet(d.Key()) {
		return ErrMissingAddressKey
	}
	if d.CreatedAt.IsZero() {
		return ErrMissingCreatedAt
	}
	if strings.TrimSpace(d.CreatedBy) == "" {
		return ErrMissingCreatedBy
	}
	return nil
}
