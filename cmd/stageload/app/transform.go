package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iot-sensordata/stageload/internal/app/storage"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Rebuild the products table from the catalog exports",
	Long: `Read the product and category CSV exports from the object store, drop deleted
products, join category names and replace the products table. Products with a
missing or malformed launch date are written to the error CSV instead.`,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().String("source-container", "", "Container holding the exports (overrides transform.sourceContainer)")
	transformCmd.Flags().String("products-key", "", "Products export key (overrides transform.productsKey)")
	transformCmd.Flags().String("categories-key", "", "Categories export key (overrides transform.categoriesKey)")
	transformCmd.Flags().String("error-container", "", "Container for the error CSV (overrides transform.errorContainer)")
	transformCmd.Flags().String("error-key", "", "Key of the error CSV (overrides transform.errorKey)")
}

// transformInput merges the command flags over the configured transform section
func transformInput(cmd *cobra.Command, cfg *config.TransformConfig) (transform.JobInput, error) {
	in := transform.JobInput{
		SourceContainer: cfg.SourceContainer,
		ProductsKey:     cfg.ProductsKey,
		CategoriesKey:   cfg.CategoriesKey,
		ErrorContainer:  cfg.ErrorContainer,
		ErrorKey:        cfg.ErrorKey,
	}
	for flag, field := range map[string]*string{
		"source-container": &in.SourceContainer,
		"products-key":     &in.ProductsKey,
		"categories-key":   &in.CategoriesKey,
		"error-container":  &in.ErrorContainer,
		"error-key":        &in.ErrorKey,
	} {
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return transform.JobInput{}, fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
		if v != "" {
			*field = v
		}
	}
	return in, nil
}

func runTransform(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	in, err := transformInput(cmd, &cfg.Transform)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	objects, err := storage.NewObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}
	pool, err := storage.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	result, err := transform.NewJob(objects, pool).Run(ctx, in)
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}
	return renderFields(cmd.OutOrStdout(), [][]string{
		{"Products loaded", fmt.Sprint(len(result.Products))},
		{"Invalid launch dates", fmt.Sprint(len(result.Errors))},
		{"Deleted", fmt.Sprint(result.Deleted)},
		{"Without category", fmt.Sprint(result.Unmatched)},
	})
}
