package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/record"
)

// Sheet reads the customer list from a CSV export of the office sheet.
// Expected columns: id, name, street, house_number, postal_code, city,
// phone, updated_at. The first row is treated as a header.
type Sheet struct {
	Path string
}

// NewSheet creates a sheet source for the given CSV path.
func NewSheet(path string) *Sheet {
	return &Sheet{Path: path}
}

// LoadCustomers parses the CSV file. Rows missing required fields are
// logged and skipped, never fatal.
func (s *Sheet) LoadCustomers(ctx context.Context) ([]record.Customer, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening customer sheet %s: %w", s.Path, err)
	}
	defer file.Close()

	customers, skipped, err := readCustomerCSV(file)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.WithFields(log.Fields{"path": s.Path, "skipped": skipped}).Warn("customer sheet rows skipped")
	}
	return customers, nil
}

// readCustomerCSV parses customer rows from a sheet export. It returns the
// valid rows and how many were skipped.
func readCustomerCSV(r io.Reader) ([]record.Customer, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("reading sheet header: %w", err)
	}

	var customers []record.Customer
	skipped := 0
	line := 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.WithError(err).WithField("line", line).Warn("skipping unreadable sheet row")
			skipped++
			continue
		}

		c, err := customerFromRow(row)
		if err != nil {
			log.WithError(err).WithField("line", line).Warn("skipping invalid sheet row")
			skipped++
			continue
		}
		customers = append(customers, c)
	}

	return customers, skipped, nil
}

// customerFromRow maps one CSV row onto a validated customer.
func customerFromRow(row []string) (record.Customer, error) {
	field := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	c := record.Customer{
		ID:          field(0),
		Name:        field(1),
		Street:      field(2),
		HouseNumber: field(3),
		PostalCode:  field(4),
		City:        field(5),
		Phone:       field(6),
	}
	if raw := field(7); raw != "" {
		if t := parseSheetTime(raw); t != nil {
			c.UpdatedAt = *t
		}
	}

	if err := c.Validate(); err != nil {
		return record.Customer{}, err
	}
	return c, nil
}

// parseSheetTime accepts the timestamp formats seen in sheet exports.
func parseSheetTime(s string) *time.Time {
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02.01.2006 15:04",
		"02.01.2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}

	return nil
}
