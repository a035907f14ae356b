package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/testerhub/code-pool-reservation/internal/model"
)

// RegionRepo reads the regions/countries reference tables.  The core
// never mutates these; management belongs to an out-of-scope admin
// path, so only lookup queries exist here.
type RegionRepo struct {
	db *sql.DB
}

// NewRegionRepo returns a new RegionRepo bound to the given database.
func NewRegionRepo(db *sql.DB) *RegionRepo { return &RegionRepo{db: db} }

// ListRegions returns all regions ordered by name.
func (r *RegionRepo) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	regions := make([]model.Region, 0)
	for rows.Next() {
		var reg model.Region
		if err := rows.Scan(&reg.ID, &reg.Name); err != nil {
			return nil, err
		}
		regions = append(regions, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

// ListCountriesByRegion returns the countries of one region ordered by
// name.
func (r *RegionRepo) ListCountriesByRegion(ctx context.Context, regionID uint64) ([]model.Country, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, region_id FROM countries WHERE region_id = ? ORDER BY name`, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	countries := make([]model.Country, 0)
	for rows.Next() {
		var co model.Country
		if err := rows.Scan(&co.ID, &co.Name, &co.RegionID); err != nil {
			return nil, err
		}
		countries = append(countries, co)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return countries, nil
}

// CountriesByName resolves country names to rows.  Unknown names are
// simply absent from the result map; bulk ingestion reports them back
// to the operator instead of failing the batch.
func (r *RegionRepo) CountriesByName(ctx context.Context, names []string) (map[string]model.Country, error) {
	found := make(map[string]model.Country)
	if len(names) == 0 {
		return found, nil
	}
	placeholders := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, n := range names {
		placeholders[i] = "?"
		args[i] = n
	}
	q := `SELECT id, name, region_id FROM countries WHERE name IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var co model.Country
		if err := rows.Scan(&co.ID, &co.Name, &co.RegionID); err != nil {
			return nil, err
		}
		found[co.Name] = co
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

// RegionNameForCountryIDs resolves the region name shared by a set of
// countries, used to denormalize audit rows at provisioning time.  It
// returns the first region name alphabetically when the countries span
// several regions.
func (r *RegionRepo) RegionNameForCountryIDs(ctx context.Context, countryIDs []uint64) (string, error) {
	if len(countryIDs) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(countryIDs))
	args := make([]interface{}, len(countryIDs))
	for i, id := range countryIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	q := `SELECT DISTINCT rg.name
		  FROM countries co
		  JOIN regions rg ON rg.id = co.region_id
		  WHERE co.id IN (` + strings.Join(placeholders, ",") + `)
		  ORDER BY rg.name
		  LIMIT 1`
	var name string
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return name, err
}
