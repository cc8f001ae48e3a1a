package record

import (
	"strings"
	"time"

	"github.com/akquise-tool/internal/normalize"
)

// AddressQuery is the transient input to every search and lock check. The
// house number field carries a raw expression like "1,3-5" and may be empty,
// in which case matching falls back to the address key alone.
type AddressQuery struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
}

// Key returns the normalized address key of the query.
func (q AddressQuery) Key() string {
	return normalize.KeyFromParts(q.Street, q.PostalCode)
}

// Customer is an existing customer as exported from the office sheet or the
// customer table. Matching treats customers as read-only.
type Customer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Street      string    `json:"street"`
	HouseNumber string    `json:"house_number"`
	PostalCode  string    `json:"postal_code"`
	City        string    `json:"city"`
	Phone       string    `json:"phone,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the normalized address key of the customer.
func (c Customer) Key() string {
	return normalize.KeyFromParts(c.Street, c.PostalCode)
}

// Resident is one doorbell nameplate entry of a dataset together with the
// recorded visit outcome.
type Resident struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Dataset is a field visit record created by an agent when canvassing an
// address. It is created once and never mutated by matching; only its key,
// house number expression, creation time and creator matter for lookups and
// the creation lock.
type Dataset struct {
	ID                string     `json:"id"`
	NormalizedAddress string     `json:"normalized_address"`
	HouseNumber       string     `json:"house_number"`
	Street            string     `json:"street,omitempty"`
	PostalCode        string     `json:"postal_code,omitempty"`
	City              string     `json:"city,omitempty"`
	Residents         []Resident `json:"residents,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CreatedBy         string     `json:"created_by"`
}

// Key returns the address key the dataset is indexed under. Stored values
// already are normalized keys; rows carrying a raw formatted address instead
// are normalized on the fly.
func (d Dataset) Key() string {
	if strings.Contains(d.NormalizedAddress, "|") {
		return d.NormalizedAddress
	}
	return normalize.Key(d.NormalizedAddress)
}
