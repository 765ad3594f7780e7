// Package transform builds the products reporting table from the product and
// category catalog exports. Deleted products are dropped, launch dates are
// parsed and category names are joined in. Products whose launch date is
// missing or malformed are set aside as error rows.
package transform

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// LaunchDateLayout is the catalog date format
const LaunchDateLayout = "2006-01-02"

// ErrMissingColumn is returned when an input file lacks a required header
var ErrMissingColumn = errors.New("missing column")

// Product is one row of the products table
type Product struct {
	ID           int64
	ProductName  string
	LaunchDate   time.Time
	CategoryName string
}

// ErrorRow is a live product whose launch date could not be parsed
type ErrorRow struct {
	ID         string
	Name       string
	Category   string
	LaunchDate string
}

// Result is the outcome of one transform
type Result struct {
	Products []Product
	Errors   []ErrorRow
	// Deleted counts products dropped by the deleted flag
	Deleted int
	// Unmatched counts live products with no matching category
	Unmatched int
}

// Run reads the product and category CSV exports and joins them
func Run(ctx context.Context, products, categories io.Reader) (*Result, error) {
	names, err := readCategories(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}

	r := csv.NewReader(products)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read products header: %w", err)
	}
	cols, err := columnIndex(header, "id", "name", "category", "launchdate", "deleted")
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}

	result := &Result{}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read products line %d: %w", line, err)
		}

		if rec[cols["deleted"]] != "N" {
			result.Deleted++
			continue
		}

		row := ErrorRow{
			ID:         rec[cols["id"]],
			Name:       rec[cols["name"]],
			Category:   rec[cols["category"]],
			LaunchDate: rec[cols["launchdate"]],
		}

		launch, err := time.Parse(LaunchDateLayout, strings.TrimSpace(row.LaunchDate))
		if err != nil {
			result.Errors = append(result.Errors, row)
			continue
		}

		id, err := strconv.ParseInt(strings.TrimSpace(row.ID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("products line %d: invalid id %q", line, row.ID)
		}
		category, err := strconv.ParseInt(strings.TrimSpace(row.Category), 10, 64)
		if err != nil {
			result.Unmatched++
			continue
		}
		categoryName, ok := names[category]
		if !ok {
			result.Unmatched++
			continue
		}

		result.Products = append(result.Products, Product{
			ID:           id,
			ProductName:  row.Name,
			LaunchDate:   launch,
			CategoryName: categoryName,
		})
	}
	return result, nil
}

func readCategories(in io.Reader) (map[int64]string, error) {
	r := csv.NewReader(in)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	cols, err := columnIndex(header, "id", "name")
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[cols["id"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid category id %q", rec[cols["id"]])
		}
		names[id] = rec[cols["name"]]
	}
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var errs []error
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingColumn, name))
		}
	}
	return cols, errors.Join(errs...)
}

// ErrorCSV renders error rows with a header line
func ErrorCSV(rows []ErrorRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "name", "category", "launchdate"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write([]string{row.ID, row.Name, row.Category, row.LaunchDate}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
