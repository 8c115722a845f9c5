package forecast

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const demandForecastColumns = `id, tenant_id, store_id, product_id, forecast_date, model_version,
forecasted_demand, lower_bound, upper_bound, confidence, created_at`

// Repository is the SQLite-backed Writer and lookup surface for
// demand_forecasts, in the same repository shape as internal/arena's
// Registry (explicit column list, *sql.DB + zerolog.Logger).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository constructs a Repository over db.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db.Conn(), log: log.With().Str("component", "forecast.repository").Logger()}
}

// Replace deletes any existing rows for (tenant, model_version, date)
// and inserts rows in their place, inside one transaction — reruns of
// the same day are deterministic rather than additive.
func (repo *Repository) Replace(tenantID uuid.UUID, modelVersion string, date time.Time, rows []domain.DemandForecast) error {
	dateKey := date.Format("2006-01-02")

	return database.WithTransaction(repo.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`DELETE FROM demand_forecasts WHERE tenant_id = ? AND model_version = ? AND forecast_date = ?`,
			tenantID.String(), modelVersion, dateKey,
		)
		if err != nil {
			return fmt.Errorf("forecast: delete existing day: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO demand_forecasts
			(` + demandForecastColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("forecast: prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			_, err := stmt.Exec(
				row.ID.String(), tenantID.String(), row.StoreID.String(), row.ProductID.String(),
				dateKey, modelVersion, row.ForecastedDemand,
				nullableFloat(row.LowerBound), nullableFloat(row.UpperBound), nullableFloat(row.Confidence),
				row.CreatedAt.Format(time.RFC3339),
			)
			if err != nil {
				return fmt.Errorf("forecast: insert row store=%s product=%s: %w", row.StoreID, row.ProductID, err)
			}
		}
		return nil
	})
}

// ForDate returns every forecast row stored for (tenant, model_version,
// date), most recently created first.
func (repo *Repository) ForDate(tenantID uuid.UUID, modelVersion string, date time.Time) ([]domain.DemandForecast, error) {
	query := `SELECT ` + demandForecastColumns + ` FROM demand_forecasts
		WHERE tenant_id = ? AND model_version = ? AND forecast_date = ?
		ORDER BY created_at DESC`
	rows, err := repo.db.Query(query, tenantID.String(), modelVersion, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DemandForecast
	for rows.Next() {
		f, err := scanDemandForecast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanDemandForecast(rows *sql.Rows) (domain.DemandForecast, error) {
	var f domain.DemandForecast
	var id, tenantID, storeID, productID, forecastDate, createdAt string
	var lower, upper, confidence sql.NullFloat64

	err := rows.Scan(&id, &tenantID, &storeID, &productID, &forecastDate, &f.ModelVersion,
		&f.ForecastedDemand, &lower, &upper, &confidence, &createdAt)
	if err != nil {
		return f, err
	}

	if f.ID, err = uuid.Parse(id); err != nil {
		return f, fmt.Errorf("forecast: parse id: %w", err)
	}
	if f.TenantID, err = uuid.Parse(tenantID); err != nil {
		return f, fmt.Errorf("forecast: parse tenant_id: %w", err)
	}
	if f.StoreID, err = uuid.Parse(storeID); err != nil {
		return f, fmt.Errorf("forecast: parse store_id: %w", err)
	}
	if f.ProductID, err = uuid.Parse(productID); err != nil {
		return f, fmt.Errorf("forecast: parse product_id: %w", err)
	}
	if f.ForecastDate, err = time.Parse("2006-01-02", forecastDate); err != nil {
		return f, fmt.Errorf("forecast: parse forecast_date: %w", err)
	}
	if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return f, fmt.Errorf("forecast: parse created_at: %w", err)
	}
	if lower.Valid {
		f.LowerBound = &lower.Float64
	}
	if upper.Valid {
		f.UpperBound = &upper.Float64
	}
	if confidence.Valid {
		f.Confidence = &confidence.Float64
	}
	return f, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
