package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Catalog inspects the engine-owned schema inside the simulation database.
// The navigator never creates or alters these tables; it only checks what the
// engine has materialized and reads counts for validation.
type Catalog struct {
	db *DB
}

// NewCatalog creates a catalog inspector over the given database.
func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

// ExistingTables returns the set of table and view names present in the
// database. Views are included because some engine targets materialize
// intermediate models as views.
func (c *Catalog) ExistingTables(ctx context.Context) (map[string]struct{}, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type IN ('table', 'view')")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema catalog: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schema catalog: %w", err)
	}

	return tables, nil
}

// MissingTables returns the required tables absent from the database, in
// registry order.
func (c *Catalog) MissingTables(ctx context.Context) ([]RequiredTable, error) {
	existing, err := c.ExistingTables(ctx)
	if err != nil {
		return nil, err
	}

	var missing []RequiredTable
	for _, rt := range RequiredTables() {
		if _, ok := existing[rt.Name]; !ok {
			missing = append(missing, rt)
		}
	}
	return missing, nil
}

// MissingByTier returns the names of required tables in the given tier that
// are absent from the database.
func (c *Catalog) MissingByTier(ctx context.Context, tier Tier) ([]string, error) {
	missing, err := c.MissingTables(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, rt := range missing {
		if rt.Tier == tier {
			names = append(names, rt.Name)
		}
	}
	return names, nil
}

// IsInitialized reports whether every required table exists.
func (c *Catalog) IsInitialized(ctx context.Context) (bool, error) {
	missing, err := c.MissingTables(ctx)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// TableExists reports whether a single table or view exists.
func (c *Catalog) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?",
		name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return count > 0, nil
}

// RowCount returns the number of rows in a table. The name must come from
// the registry constants; it is interpolated into the statement.
func (c *Catalog) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %q", table)
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// YearRowCount returns the number of rows a table holds for one simulation year.
func (c *Catalog) YearRowCount(ctx context.Context, table string, year int) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE simulation_year = ?", table)
	if err := c.db.QueryRowContext(ctx, query, year).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count year %d rows in %s: %w", year, table, err)
	}
	return count, nil
}

// EventTypeCounts returns per-type event counts for one simulation year.
func (c *Catalog) EventTypeCounts(ctx context.Context, year int) (map[string]int64, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT event_type, COUNT(*) FROM fct_yearly_events WHERE simulation_year = ? GROUP BY event_type",
		year)
	if err != nil {
		return nil, fmt.Errorf("failed to count events for year %d: %w", year, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event counts: %w", err)
	}

	return counts, nil
}

// MinEventSequence returns the smallest event_sequence recorded for the given
// event type in one simulation year. The second return is false when the year
// has no events of that type.
func (c *Catalog) MinEventSequence(ctx context.Context, year int, eventType string) (int64, bool, error) {
	var seq sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		"SELECT MIN(event_sequence) FROM fct_yearly_events WHERE simulation_year = ? AND event_type = ?",
		year, eventType).Scan(&seq)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query min sequence for %s in year %d: %w", eventType, year, err)
	}
	if !seq.Valid {
		return 0, false, nil
	}
	return seq.Int64, true, nil
}

// ActiveHeadcount returns the number of active employees in the workforce
// snapshot for one simulation year.
func (c *Catalog) ActiveHeadcount(ctx context.Context, year int) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fct_workforce_snapshot WHERE simulation_year = ? AND employment_status = 'active'",
		year).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active headcount for year %d: %w", year, err)
	}
	return count, nil
}

// BaselineHeadcount returns the number of employees in the baseline workforce.
func (c *Catalog) BaselineHeadcount(ctx context.Context) (int64, error) {
	return c.RowCount(ctx, TableBaselineWorkforce)
}

// PlannedHires returns the planned hire count for one simulation year from
// the hiring plan seed. The second return is false when the plan has no row
// for that year.
func (c *Catalog) PlannedHires(ctx context.Context, year int) (int64, bool, error) {
	var hires sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		"SELECT SUM(hire_count) FROM seed_hiring_plan WHERE simulation_year = ?",
		year).Scan(&hires)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query hiring plan for year %d: %w", year, err)
	}
	if !hires.Valid {
		return 0, false, nil
	}
	return hires.Int64, true, nil
}
