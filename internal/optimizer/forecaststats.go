package optimizer

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/sentinel/internal/database"
)

// SQLForecastStats implements ForecastStats over the facts database's
// demand_forecasts table, using the most recently generated model
// version's forecasted_demand for the earliest horizonDays forecast dates
// that version holds (the query applies no date filter).
type SQLForecastStats struct{ db *sql.DB }

// NewSQLForecastStats constructs a SQLForecastStats over the facts
// database.
func NewSQLForecastStats(factsDB *database.DB) *SQLForecastStats {
	return &SQLForecastStats{db: factsDB.Conn()}
}

// Stats implements ForecastStats.
func (f *SQLForecastStats) Stats(tenantID, storeID, productID uuid.UUID, horizonDays int) (DemandStats, bool, error) {
	modelVersion, err := f.latestModelVersion(tenantID, storeID, productID)
	if err != nil {
		return DemandStats{}, false, err
	}
	if modelVersion == "" {
		return DemandStats{}, false, nil
	}

	rows, err := f.db.Query(`
		SELECT forecasted_demand FROM demand_forecasts
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND model_version = ?
		ORDER BY forecast_date ASC LIMIT ?`,
		tenantID.String(), storeID.String(), productID.String(), modelVersion, horizonDays)
	if err != nil {
		return DemandStats{}, false, fmt.Errorf("optimizer: query forecast stats: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var demand float64
		if err := rows.Scan(&demand); err != nil {
			return DemandStats{}, false, fmt.Errorf("optimizer: scan forecast demand: %w", err)
		}
		values = append(values, demand)
	}
	if err := rows.Err(); err != nil {
		return DemandStats{}, false, err
	}
	if len(values) == 0 {
		return DemandStats{}, false, nil
	}

	mean, std := stat.MeanStdDev(values, nil)
	return DemandStats{AvgDaily: mean, StdDev: std}, true, nil
}

// latestModelVersion returns the model_version of the pair's most
// recently generated forecast batch, or "" if none exist.
func (f *SQLForecastStats) latestModelVersion(tenantID, storeID, productID uuid.UUID) (string, error) {
	var modelVersion string
	err := f.db.QueryRow(`
		SELECT model_version FROM demand_forecasts
		WHERE tenant_id = ? AND store_id = ? AND product_id = ?
		ORDER BY created_at DESC LIMIT 1`,
		tenantID.String(), storeID.String(), productID.String(),
	).Scan(&modelVersion)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("optimizer: query latest model version: %w", err)
	}
	return modelVersion, nil
}
