// Package backup archives the model and report directories to
// S3-compatible object storage: ShelfOps's durable-but-regenerable
// state — trained model artifacts (internal/arena, internal/training)
// and replay/backtest reports (internal/replay). The six SQLite
// databases themselves are out of scope for this archive — they're the
// authoritative store, not a cache, and get backed up by the
// operator's own SQLite-aware tooling.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Config controls the destination bucket and credentials. Endpoint is
// set for S3-compatible providers (R2, MinIO, ...); left empty it
// targets AWS S3 directly.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Service archives ModelDir and ReportDir into a single gzip'd tar and
// uploads it to object storage.
type Service struct {
	uploader  *manager.Uploader
	bucket    string
	modelDir  string
	reportDir string
	log       zerolog.Logger
}

// New constructs a Service. It returns an error only if the AWS SDK
// config fails to load; network reachability to the bucket is not
// checked until the first Run.
func New(ctx context.Context, cfg Config, modelDir, reportDir string, log zerolog.Logger) (*Service, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("backup: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Service{
		uploader:  manager.NewUploader(client),
		bucket:    cfg.Bucket,
		modelDir:  modelDir,
		reportDir: reportDir,
		log:       log.With().Str("component", "backup.service").Logger(),
	}, nil
}

// Run archives the configured directories and uploads the result as
// "shelfops-backup-<RFC3339>.tar.gz", returning the object key and the
// archive's sha256 checksum for operator verification.
func (s *Service) Run(ctx context.Context) (key string, checksum string, err error) {
	staging, err := os.MkdirTemp("", "shelfops-backup-")
	if err != nil {
		return "", "", fmt.Errorf("backup: staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	archivePath := filepath.Join(staging, "backup.tar.gz")
	if err := s.writeArchive(archivePath); err != nil {
		return "", "", err
	}

	sum, err := sha256File(archivePath)
	if err != nil {
		return "", "", fmt.Errorf("backup: checksum: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", "", fmt.Errorf("backup: open archive: %w", err)
	}
	defer f.Close()

	key = fmt.Sprintf("shelfops-backup-%s.tar.gz", time.Now().UTC().Format(time.RFC3339))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", "", fmt.Errorf("backup: upload: %w", err)
	}

	s.log.Info().Str("key", key).Str("checksum", sum).Msg("backup uploaded")
	return key, sum, nil
}

func (s *Service) writeArchive(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backup: create archive: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, dir := range []string{s.modelDir, s.reportDir} {
		if err := addDir(tw, dir); err != nil {
			return fmt.Errorf("backup: archive %s: %w", dir, err)
		}
	}
	return nil
}

func addDir(tw *tar.Writer, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.Dir(dir), path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
