package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/db"
	"github.com/akquise-tool/internal/record"
)

// Postgres reads customers and datasets from the database and appends newly
// created datasets. It backs both the snapshot refresh and the engine's
// dataset sink.
type Postgres struct {
	conn *db.Connection
}

// NewPostgres creates a Postgres store on an open connection.
func NewPostgres(conn *db.Connection) *Postgres {
	return &Postgres{conn: conn}
}

// EnsureSchema creates the tables and indexes when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS customer (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL,
		house_number TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS dataset (
		id UUID PRIMARY KEY,
		normalized_address TEXT NOT NULL,
		house_number TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		residents JSONB NOT NULL DEFAULT '[]',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		created_by TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dataset_normalized_address ON dataset(normalized_address);
	CREATE INDEX IF NOT EXISTS idx_dataset_created_at ON dataset(created_at);
	`

	_, err := p.conn.DB.ExecContext(ctx, query)
	return err
}

// LoadCustomers reads all customer rows. Unreadable rows are logged and
// skipped; row-level validation happens when the snapshot is built.
func (p *Postgres) LoadCustomers(ctx context.Context) ([]record.Customer, error) {
	rows, err := p.conn.DB.QueryContext(ctx, `
		SELECT id, name, street, house_number, postal_code, city, phone, updated_at
		FROM customer
	`)
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	defer rows.Close()

	var out []record.Customer
	for rows.Next() {
		var c record.Customer
		var updatedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.Street, &c.HouseNumber, &c.PostalCode, &c.City, &c.Phone, &updatedAt); err != nil {
			log.WithError(err).Warn("skipping unreadable customer row")
			continue
		}
		if updatedAt.Valid {
			c.UpdatedAt = updatedAt.Time
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

// LoadDatasets reads all dataset rows.
func (p *Postgres) LoadDatasets(ctx context.Context) ([]record.Dataset, error) {
	rows, err := p.conn.DB.QueryContext(ctx, `
		SELECT id, normalized_address, house_number, street, postal_code, city, residents, notes, created_at, created_by
		FROM dataset
	`)
	if err != nil {
		return nil, fmt.Errorf("querying datasets: %w", err)
	}
	defer rows.Close()

	var out []record.Dataset
	for rows.Next() {
		var d record.Dataset
		var residents []byte
		if err := rows.Scan(&d.ID, &d.NormalizedAddress, &d.HouseNumber, &d.Street, &d.PostalCode, &d.City, &residents, &d.Notes, &d.CreatedAt, &d.CreatedBy); err != nil {
			log.WithError(err).Warn("skipping unreadable dataset row")
			continue
		}
		if len(residents) > 0 {
			if err := json.Unmarshal(residents, &d.Residents); err != nil {
				log.WithError(err).WithField("id", d.ID).Warn("dropping unreadable residents column")
			}
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

// InsertDataset appends a new dataset row.
func (p *Postgres) InsertDataset(ctx context.Context, d record.Dataset) error {
	residents := d.Residents
	if residents == nil {
		residents = []record.Resident{}
	}
	payload, err := json.Marshal(residents)
	if err != nil {
		return fmt.Errorf("encoding residents: %w", err)
	}

	_, err = p.conn.DB.ExecContext(ctx, `
		INSERT INTO dataset (id, normalized_address, house_number, street, postal_code, city, residents, notes, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, d.ID, d.NormalizedAddress, d.HouseNumber, d.Street, d.PostalCode, d.City, payload, d.Notes, d.CreatedAt, d.CreatedBy)
	if err != nil {
		return fmt.Errorf("inserting dataset: %w", err)
	}
	return nil
}

// Counts returns the persisted row counts per table.
func (p *Postgres) Counts(ctx context.Context) (customers, datasets int64, err error) {
	if err = p.conn.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM customer`).Scan(&customers); err != nil {
		return 0, 0, fmt.Errorf("counting customers: %w", err)
	}
	if err = p.conn.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM dataset`).Scan(&datasets); err != nil {
		return 0, 0, fmt.Errorf("counting datasets: %w", err)
	}
	return customers, datasets, nil
}

// ImportCustomers upserts customer rows into the customer table and returns
// how many were written.
func (p *Postgres) ImportCustomers(ctx context.Context, customers []record.Customer) (int, error) {
	stmt, err := p.conn.DB.PrepareContext(ctx, `
		INSERT INTO customer (id, name, street, house_number, postal_code, city, phone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			street = EXCLUDED.street,
			house_number = EXCLUDED.house_number,
			postal_code = EXCLUDED.postal_code,
			city = EXCLUDED.city,
			phone = EXCLUDED.phone,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing customer upsert: %w", err)
	}
	defer stmt.Close()

	imported := 0
	for _, c := range customers {
		var updatedAt interface{}
		if !c.UpdatedAt.IsZero() {
			updatedAt = c.UpdatedAt
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Street, c.HouseNumber, c.PostalCode, c.City, c.Phone, updatedAt); err != nil {
			log.WithError(err).WithField("id", c.ID).Warn("skipping customer upsert")
			continue
		}
		imported++
		if imported%1000 == 0 {
			log.WithField("imported", imported).Info("customer import progress")
		}
	}

	return imported, nil
}
