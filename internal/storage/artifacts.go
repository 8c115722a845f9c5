// Package storage persists trained model artifacts to the filesystem
// model directory, one file per (tenant, model_name, version); saving
// the same triple again overwrites that file.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/training"
)

// RegressorKind tags which concrete training.Regressor implementation
// an envelope entry holds, since msgpack (like the wire formats
// internal/ingestion/event already decodes with it) can't serialize an
// interface value directly.
type RegressorKind string

const (
	KindGradientBoost RegressorKind = "gradient_boost"
	KindEWMA          RegressorKind = "ewma"
)

// regressorEnvelope is the persisted form of one ensemble member.
type regressorEnvelope struct {
	Kind          RegressorKind
	GradientBoost *training.GradientBoostState `msgpack:",omitempty"`
	EWMA          *training.EWMAState          `msgpack:",omitempty"`
}

// artifactEnvelope is the full persisted form of an arena.Artifact.
type artifactEnvelope struct {
	Metadata   arena.ArtifactMetadata
	Regressors []regressorEnvelope
}

// FileArtifactStore implements forecast.ArtifactStore (and the
// arena-training side's Save) by msgpack-encoding each artifact to
// <modelDir>/<tenant>/<modelName>/<version>.msgpack.
type FileArtifactStore struct {
	modelDir string
	log      zerolog.Logger
}

// NewFileArtifactStore constructs a FileArtifactStore rooted at modelDir.
func NewFileArtifactStore(modelDir string, log zerolog.Logger) *FileArtifactStore {
	return &FileArtifactStore{modelDir: modelDir, log: log.With().Str("component", "storage.artifacts").Logger()}
}

func (s *FileArtifactStore) path(tenantID uuid.UUID, modelName, version string) string {
	return filepath.Join(s.modelDir, tenantID.String(), modelName, version+".msgpack")
}

// Save encodes artifact and writes it to the path keyed by (tenant,
// model_name, version), creating parent directories as needed. An
// existing file at that path is overwritten.
func (s *FileArtifactStore) Save(tenantID uuid.UUID, modelName string, artifact arena.Artifact) error {
	envelope := artifactEnvelope{Metadata: artifact.Metadata}
	for _, r := range artifact.Regressors {
		switch v := r.(type) {
		case *training.GradientBoost:
			st := v.State()
			envelope.Regressors = append(envelope.Regressors, regressorEnvelope{Kind: KindGradientBoost, GradientBoost: &st})
		case *training.EWMA:
			st := v.State()
			envelope.Regressors = append(envelope.Regressors, regressorEnvelope{Kind: KindEWMA, EWMA: &st})
		default:
			return fmt.Errorf("storage: artifact for %s/%s has unsupported regressor type %T", modelName, artifact.Metadata.Version, r)
		}
	}

	data, err := msgpack.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("storage: encode artifact %s/%s: %w", modelName, artifact.Metadata.Version, err)
	}

	path := s.path(tenantID, modelName, artifact.Metadata.Version)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("storage: create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("storage: write artifact %s/%s: %w", modelName, artifact.Metadata.Version, err)
	}
	s.log.Info().Str("model_name", modelName).Str("version", artifact.Metadata.Version).Int("bytes", len(data)).Msg("model artifact saved")
	return nil
}

// Load implements forecast.ArtifactStore.
func (s *FileArtifactStore) Load(tenantID uuid.UUID, modelName, version string) (arena.Artifact, error) {
	path := s.path(tenantID, modelName, version)
	data, err := os.ReadFile(path)
	if err != nil {
		return arena.Artifact{}, fmt.Errorf("storage: read artifact %s/%s: %w", modelName, version, err)
	}

	var envelope artifactEnvelope
	if err := msgpack.Unmarshal(data, &envelope); err != nil {
		return arena.Artifact{}, fmt.Errorf("storage: decode artifact %s/%s: %w", modelName, version, err)
	}

	regressors := make([]training.Regressor, 0, len(envelope.Regressors))
	for i, re := range envelope.Regressors {
		switch re.Kind {
		case KindGradientBoost:
			if re.GradientBoost == nil {
				return arena.Artifact{}, fmt.Errorf("storage: artifact %s/%s regressor %d missing gradient_boost state", modelName, version, i)
			}
			regressors = append(regressors, training.LoadGradientBoost(*re.GradientBoost))
		case KindEWMA:
			if re.EWMA == nil {
				return arena.Artifact{}, fmt.Errorf("storage: artifact %s/%s regressor %d missing ewma state", modelName, version, i)
			}
			regressors = append(regressors, training.LoadEWMA(*re.EWMA))
		default:
			return arena.Artifact{}, fmt.Errorf("storage: artifact %s/%s regressor %d has unknown kind %q", modelName, version, i, re.Kind)
		}
	}

	return arena.Artifact{Regressors: regressors, Metadata: envelope.Metadata}, nil
}
