package transform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/iot-sensordata/stageload/internal/objectstore"
)

const productsTable = "products"

// Beginner opens a transaction. pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// JobInput names the catalog exports and where error rows go
type JobInput struct {
	SourceContainer string
	ProductsKey     string
	CategoriesKey   string
	ErrorContainer  string
	ErrorKey        string
}

// Job runs a transform against the object store and writes the products table
type Job struct {
	objects objectstore.Store
	db      Beginner
}

// NewJob creates a Job
func NewJob(objects objectstore.Store, db Beginner) *Job {
	return &Job{objects: objects, db: db}
}

// Run transforms the exports named by in. The products table is replaced in
// one transaction. The error CSV is written only when there are error rows.
func (j *Job) Run(ctx context.Context, in JobInput) (*Result, error) {
	products, err := j.open(ctx, in.SourceContainer, in.ProductsKey)
	if err != nil {
		return nil, err
	}
	defer products.Close()

	categories, err := j.open(ctx, in.SourceContainer, in.CategoriesKey)
	if err != nil {
		return nil, err
	}
	defer categories.Close()

	result, err := Run(ctx, products, categories)
	if err != nil {
		return nil, err
	}
	slog.Info("Catalog transformed",
		"products", len(result.Products),
		"errors", len(result.Errors),
		"deleted", result.Deleted,
		"unmatched", result.Unmatched)

	if err := j.writeProducts(ctx, result.Products); err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		data, err := ErrorCSV(result.Errors)
		if err != nil {
			return nil, fmt.Errorf("failed to render error rows: %w", err)
		}
		if err := j.objects.Put(ctx, in.ErrorContainer, in.ErrorKey, data, "text/csv"); err != nil {
			return nil, fmt.Errorf("failed to write error rows: %w", err)
		}
		slog.Warn("Products with invalid launch dates written",
			"container", in.ErrorContainer,
			"key", in.ErrorKey,
			"count", len(result.Errors))
	}
	return result, nil
}

func (j *Job) open(ctx context.Context, container, key string) (io.ReadCloser, error) {
	rc, err := j.objects.Get(ctx, container, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s/%s: %w", container, key, err)
	}
	return rc, nil
}

func (j *Job) writeProducts(ctx context.Context, products []Product) (err error) {
	tx, err := j.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Error("Failed to roll back products load", "error", rbErr)
			}
		}
	}()

	if _, err = tx.Exec(ctx, "TRUNCATE TABLE "+productsTable); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", productsTable, err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{productsTable},
		[]string{"id", "productname", "launchdate", "categoryname"},
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			p := products[i]
			return []any{p.ID, p.ProductName, p.LaunchDate, p.CategoryName}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy into %s: %w", productsTable, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit products load: %w", err)
	}
	return nil
}
