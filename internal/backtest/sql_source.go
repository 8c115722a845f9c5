package backtest

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
)

// SQLObservationSource builds walk-forward Observations for one
// (tenant, model_version) by joining the facts database's
// demand_forecasts against its own actual daily net quantity, in a
// single query whose correlated subquery sums the transactions of each
// forecast date.
type SQLObservationSource struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLObservationSource constructs a SQLObservationSource over the
// facts database.
func NewSQLObservationSource(factsDB *database.DB, log zerolog.Logger) *SQLObservationSource {
	return &SQLObservationSource{db: factsDB.Conn(), log: log.With().Str("component", "backtest.sql_source").Logger()}
}

// Observations returns every (store, product, date) row with a stored
// forecast for modelVersion on or before asOf, in ascending date order,
// ready for WalkForward. A date with no transactions gets an actual of 0.
func (s *SQLObservationSource) Observations(tenantID uuid.UUID, modelVersion string, asOf time.Time) ([]Observation, error) {
	rows, err := s.db.Query(`
		SELECT f.store_id, f.product_id, f.forecast_date, f.forecasted_demand,
		       COALESCE((
		           SELECT SUM(t.quantity) FROM transactions t
		           WHERE t.tenant_id = f.tenant_id AND t.store_id = f.store_id
		             AND t.product_id = f.product_id AND date(t.ts) = f.forecast_date
		       ), 0) AS actual
		FROM demand_forecasts f
		WHERE f.tenant_id = ? AND f.model_version = ? AND f.forecast_date <= date(?)
		ORDER BY f.forecast_date ASC`,
		tenantID.String(), modelVersion, asOf.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("backtest: query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var storeID, productID, dateStr string
		var forecast, actual float64
		if err := rows.Scan(&storeID, &productID, &dateStr, &forecast, &actual); err != nil {
			return nil, fmt.Errorf("backtest: scan observation: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if actual < 0 {
			actual = 0
		}
		out = append(out, Observation{
			StoreID:   storeID,
			ProductID: productID,
			Date:      date,
			Forecast:  forecast,
			Actual:    actual,
		})
	}
	return out, rows.Err()
}
