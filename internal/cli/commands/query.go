package commands

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	cerrors "github.com/curiosum-dev/contexted/compiler/errors"
	"github.com/curiosum-dev/contexted/internal/orm/query"
	"github.com/curiosum-dev/contexted/internal/orm/repo"
	"github.com/curiosum-dev/contexted/internal/orm/schema"
)

// NewQueryCommand creates the query command
func NewQueryCommand() *cobra.Command {
	var (
		schemaFile   string
		resourceName string
		filterJSON   string
		counts       []string
		order        []string
		limit        int
		offset       int
		dialectName  string
		exec         bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Compile a nested filter to SQL",
		Long: `Compile a nested filter over a resource of a YAML schema file into a SQL
statement. Association keys in the filter become joins; --count adds an
"<association>_count" column for a direct association.

With --exec the statement runs against the database configured in
contexted.yml and the rows are printed as JSON.`,
		Example: `  contexted query --schema schema.yml --resource Item \
    --filter '{"category": {"name": "Lamps"}}' --count sub_items --order name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := schema.LoadFile(schemaFile)
			if err != nil {
				return err
			}
			resource, ok := registry.Get(resourceName)
			if !ok {
				return report(cmd.ErrOrStderr(), unknownResource(resourceName, schemaFile, registry), "", false)
			}

			filter, err := parseFilter(filterJSON)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}

			var (
				driver string
				url    string
			)
			if exec {
				cfg, err := loadProject()
				if err != nil {
					return report(cmd.ErrOrStderr(), err, "", false)
				}
				driver, url = cfg.Database.Driver, cfg.Database.URL
				if url == "" {
					return fmt.Errorf("database.url is not set in %s", cfg.Root)
				}
				if dialectName == "" {
					dialectName = driver
				}
			}
			if dialectName == "" {
				dialectName = "postgres"
			}
			dialect, err := query.ParseDialect(dialectName)
			if err != nil {
				return err
			}

			qb, err := query.Build(resource, registry.All(), filter)
			if err != nil {
				return err
			}
			qb.WithDialect(dialect)
			if err := qb.WithAssociationCounts(counts...); err != nil {
				if errors.Is(err, query.ErrIndirectAssociation) {
					return report(cmd.ErrOrStderr(), cerrors.NewIndirectAssociation(resourceName, err), "", false)
				}
				return err
			}
			for _, o := range order {
				field, direction, _ := strings.Cut(o, ":")
				if direction == "" {
					direction = "ASC"
				}
				qb.OrderBy(field, direction)
			}
			if limit > 0 {
				qb.Limit(limit)
			}
			if offset > 0 {
				qb.Offset(offset)
			}

			if !exec {
				statement, bindArgs, err := qb.ToSQL()
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), struct {
					SQL  string        `json:"sql"`
					Args []interface{} `json:"args"`
				}{statement, bindArgs})
			}

			db, err := sql.Open(driverName(driver, dialect), url)
			if err != nil {
				return err
			}
			defer db.Close()

			r := repo.New(db, registry.All(), dialect, repo.WithLogger(logger.Logger))
			records, err := r.All(cmd.Context(), qb)
			if err != nil {
				return err
			}
			if records == nil {
				records = []repo.Record{}
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "schema.yml", "YAML schema file")
	cmd.Flags().StringVar(&resourceName, "resource", "", "Base resource of the query")
	cmd.Flags().StringVar(&filterJSON, "filter", "", "Nested filter as a JSON object")
	cmd.Flags().StringArrayVar(&counts, "count", nil, "Direct association to count (repeatable)")
	cmd.Flags().StringArrayVar(&order, "order", nil, "Order by field[:asc|desc] (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().StringVar(&dialectName, "dialect", "", "Parameter style: postgres or sqlite (default: the configured driver)")
	cmd.Flags().BoolVar(&exec, "exec", false, "Run the statement against the configured database")
	cmd.MarkFlagRequired("resource")

	return cmd
}

// parseFilter decodes a JSON filter keeping integers as int64, so ids bind
// as integers rather than float64
func parseFilter(raw string) (query.Filter, error) {
	filter := query.Filter{}
	if raw == "" {
		return filter, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&filter); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after the filter object")
	}

	if err := normalizeNumbers(filter); err != nil {
		return nil, err
	}
	return filter, nil
}

func normalizeNumbers(m map[string]interface{}) error {
	for key, value := range m {
		switch v := value.(type) {
		case map[string]interface{}:
			if err := normalizeNumbers(v); err != nil {
				return err
			}
		case json.Number:
			if n, err := v.Int64(); err == nil {
				m[key] = n
				continue
			}
			f, err := v.Float64()
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			m[key] = f
		}
	}
	return nil
}

// driverName maps a configured driver to a registered database/sql driver.
// "postgres" is served by lib/pq, everything else postgres-flavoured by pgx.
func driverName(configured string, dialect query.Dialect) string {
	switch configured {
	case "postgres", "sqlite3":
		return configured
	case "sqlite":
		return "sqlite3"
	}
	if dialect == query.SQLite {
		return "sqlite3"
	}
	return "pgx"
}
