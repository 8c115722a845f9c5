package arena

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// modelVersionColumns lists the model_versions columns explicitly, in
// scan order, to avoid SELECT * breaking silently on schema changes.
const modelVersionColumns = `id, tenant_id, model_name, version, status, mae, mape, coverage,
routing_weight, smoke_test_passed, feature_tier, created_at, promoted_at, archived_at`

// Registry is the SQLite-backed model version store: registration,
// promotion (with atomic champion archival), and lookup by status.
type Registry struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRegistry constructs a Registry over db's models database.
func NewRegistry(db *database.DB, log zerolog.Logger) *Registry {
	return &Registry{db: db.Conn(), log: log.With().Str("component", "arena.registry").Logger()}
}

// Register inserts a new candidate version for (tenant, model_name),
// assigning it the next monotonic version string. The first candidate
// for a (tenant, model_name) pair is auto-promoted to champion;
// later candidates start in ModelCandidate status.
func (r *Registry) Register(tenantID uuid.UUID, modelName string, metrics domain.ModelMetrics, featureTier string, smokeTestPassed bool) (domain.ModelVersion, error) {
	existing, err := r.listAll(tenantID, modelName)
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("arena: list existing versions: %w", err)
	}

	champion := findChampion(existing)
	status := domain.ModelCandidate
	var promotedAt *time.Time
	now := time.Now().UTC()
	if champion == nil {
		status = domain.ModelChampion
		promotedAt = ptrTime(now)
	}

	v := domain.ModelVersion{
		ID:              newVersionID(),
		TenantID:        tenantID,
		ModelName:       modelName,
		Version:         nextVersion(existing),
		Status:          status,
		Metrics:         metrics,
		RoutingWeight:   0,
		SmokeTestPassed: smokeTestPassed,
		FeatureTier:     featureTier,
		CreatedAt:       now,
		PromotedAt:      promotedAt,
	}
	if status == domain.ModelChampion {
		v.RoutingWeight = 1
	}

	if err := r.insert(v); err != nil {
		return domain.ModelVersion{}, fmt.Errorf("arena: insert version: %w", err)
	}
	return v, nil
}

// Promote evaluates candidateID against the current champion's
// promotion gate and, if it passes, atomically promotes the candidate
// to champion and archives the previous champion in one transaction.
// Both ModelCandidate and ModelChallenger versions may be promoted.
// Returns apperr with KindDataUnavailable if the version is not found,
// and KindStateMachineViolation if it is in any other status or fails
// the gate.
func (r *Registry) Promote(tenantID uuid.UUID, modelName, candidateVersion string, threshold float64) (domain.ModelVersion, error) {
	var promoted domain.ModelVersion

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		candidate, err := r.getByVersionTx(tx, tenantID, modelName, candidateVersion)
		if err != nil {
			return err
		}
		if candidate.Status != domain.ModelCandidate && candidate.Status != domain.ModelChallenger {
			return apperr.New(apperr.KindStateMachineViolation, "arena.Promote", nil).
				WithResource(candidateVersion)
		}

		champion, err := r.getChampionTx(tx, tenantID, modelName)
		if err != nil {
			return err
		}

		if !PromotionGate(candidate, champion, threshold) {
			return apperr.New(apperr.KindStateMachineViolation, "arena.Promote: gate failed", nil).
				WithResource(candidateVersion)
		}

		now := time.Now().UTC()
		if champion != nil {
			if err := r.archiveTx(tx, champion.ID, now); err != nil {
				return err
			}
		}
		if err := r.promoteTx(tx, candidate.ID, now); err != nil {
			return err
		}

		candidate.Status = domain.ModelChampion
		candidate.RoutingWeight = 1
		candidate.PromotedAt = ptrTime(now)
		promoted = candidate
		return nil
	})
	if err != nil {
		return domain.ModelVersion{}, err
	}
	r.log.Info().Str("model", modelName).Str("version", candidateVersion).Msg("model version promoted to champion")
	return promoted, nil
}

// Champion returns the current champion for (tenant, model_name), or
// (zero, false, nil) if none has been promoted yet.
func (r *Registry) Champion(tenantID uuid.UUID, modelName string) (domain.ModelVersion, bool, error) {
	existing, err := r.listAll(tenantID, modelName)
	if err != nil {
		return domain.ModelVersion{}, false, err
	}
	if c := findChampion(existing); c != nil {
		return *c, true, nil
	}
	return domain.ModelVersion{}, false, nil
}

// Challengers returns all ModelChallenger-status versions for (tenant,
// model_name), in creation order, oldest first.
func (r *Registry) Challengers(tenantID uuid.UUID, modelName string) ([]domain.ModelVersion, error) {
	all, err := r.listAll(tenantID, modelName)
	if err != nil {
		return nil, err
	}
	var out []domain.ModelVersion
	for _, v := range all {
		if v.Status == domain.ModelChallenger {
			out = append(out, v)
		}
	}
	return out, nil
}

// GetVersion looks up one exact (tenant, model_name, version) entry,
// for explicit-override resolution in the forecast runtime.
func (r *Registry) GetVersion(tenantID uuid.UUID, modelName, version string) (domain.ModelVersion, error) {
	query := `SELECT ` + modelVersionColumns + ` FROM model_versions WHERE tenant_id = ? AND model_name = ? AND version = ?`
	rows, err := r.db.Query(query, tenantID.String(), modelName, version)
	if err != nil {
		return domain.ModelVersion{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return domain.ModelVersion{}, apperr.New(apperr.KindDataUnavailable, "arena.GetVersion", nil).WithResource(version)
	}
	return scanModelVersion(rows)
}

// MarkChallenger demotes a candidate that failed its promotion gate
// to challenger status, where it remains eligible for shadow-testing
// and a later promotion attempt.
func (r *Registry) MarkChallenger(tenantID uuid.UUID, modelName, version string) error {
	_, err := r.db.Exec(
		`UPDATE model_versions SET status = ? WHERE tenant_id = ? AND model_name = ? AND version = ?`,
		string(domain.ModelChallenger), tenantID.String(), modelName, version,
	)
	if err != nil {
		return fmt.Errorf("arena: mark challenger: %w", err)
	}
	return nil
}

func (r *Registry) listAll(tenantID uuid.UUID, modelName string) ([]domain.ModelVersion, error) {
	query := `SELECT ` + modelVersionColumns + ` FROM model_versions WHERE tenant_id = ? AND model_name = ? ORDER BY created_at ASC`
	rows, err := r.db.Query(query, tenantID.String(), modelName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ModelVersion
	for rows.Next() {
		v, err := scanModelVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Registry) insert(v domain.ModelVersion) error {
	_, err := r.db.Exec(`
		INSERT INTO model_versions
		(id, tenant_id, model_name, version, status, mae, mape, coverage,
		 routing_weight, smoke_test_passed, feature_tier, created_at, promoted_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(), v.TenantID.String(), v.ModelName, v.Version, string(v.Status),
		v.Metrics.MAE, v.Metrics.MAPE, v.Metrics.Coverage,
		v.RoutingWeight, boolToInt(v.SmokeTestPassed), v.FeatureTier,
		v.CreatedAt.Format(time.RFC3339), formatNullTime(v.PromotedAt), formatNullTime(v.ArchivedAt),
	)
	return err
}

func (r *Registry) getByVersionTx(tx *sql.Tx, tenantID uuid.UUID, modelName, version string) (domain.ModelVersion, error) {
	query := `SELECT ` + modelVersionColumns + ` FROM model_versions WHERE tenant_id = ? AND model_name = ? AND version = ?`
	rows, err := tx.Query(query, tenantID.String(), modelName, version)
	if err != nil {
		return domain.ModelVersion{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return domain.ModelVersion{}, apperr.New(apperr.KindDataUnavailable, "arena.getByVersion", nil).WithResource(version)
	}
	return scanModelVersion(rows)
}

func (r *Registry) getChampionTx(tx *sql.Tx, tenantID uuid.UUID, modelName string) (*domain.ModelVersion, error) {
	query := `SELECT ` + modelVersionColumns + ` FROM model_versions WHERE tenant_id = ? AND model_name = ? AND status = ?`
	rows, err := tx.Query(query, tenantID.String(), modelName, string(domain.ModelChampion))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, nil
	}
	v, err := scanModelVersion(rows)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Registry) archiveTx(tx *sql.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.Exec(`UPDATE model_versions SET status = ?, archived_at = ?, routing_weight = 0 WHERE id = ?`,
		string(domain.ModelArchived), at.Format(time.RFC3339), id.String())
	return err
}

func (r *Registry) promoteTx(tx *sql.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.Exec(`UPDATE model_versions SET status = ?, promoted_at = ?, routing_weight = 1 WHERE id = ?`,
		string(domain.ModelChampion), at.Format(time.RFC3339), id.String())
	return err
}

func findChampion(versions []domain.ModelVersion) *domain.ModelVersion {
	for i := range versions {
		if versions[i].Status == domain.ModelChampion {
			return &versions[i]
		}
	}
	return nil
}

func scanModelVersion(rows *sql.Rows) (domain.ModelVersion, error) {
	var v domain.ModelVersion
	var id, tenantID, status string
	var smokeTestPassed int
	var createdAt string
	var promotedAt, archivedAt sql.NullString

	err := rows.Scan(
		&id, &tenantID, &v.ModelName, &v.Version, &status,
		&v.Metrics.MAE, &v.Metrics.MAPE, &v.Metrics.Coverage,
		&v.RoutingWeight, &smokeTestPassed, &v.FeatureTier,
		&createdAt, &promotedAt, &archivedAt,
	)
	if err != nil {
		return v, err
	}

	v.ID, err = uuid.Parse(id)
	if err != nil {
		return v, fmt.Errorf("arena: parse id: %w", err)
	}
	v.TenantID, err = uuid.Parse(tenantID)
	if err != nil {
		return v, fmt.Errorf("arena: parse tenant_id: %w", err)
	}
	v.Status = domain.ModelStatus(status)
	v.SmokeTestPassed = smokeTestPassed != 0

	v.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return v, fmt.Errorf("arena: parse created_at: %w", err)
	}
	if promotedAt.Valid {
		t, err := time.Parse(time.RFC3339, promotedAt.String)
		if err != nil {
			return v, fmt.Errorf("arena: parse promoted_at: %w", err)
		}
		v.PromotedAt = &t
	}
	if archivedAt.Valid {
		t, err := time.Parse(time.RFC3339, archivedAt.String)
		if err != nil {
			return v, fmt.Errorf("arena: parse archived_at: %w", err)
		}
		v.ArchivedAt = &t
	}
	return v, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
