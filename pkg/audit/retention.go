package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/robfig/cron/v3"

	"github.com/retailops/backoffice/pkg/observability"
)

// RetentionPolicy defines how long audit entries are kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit entries
	RetentionDays int

	// ArchiveEnabled determines if expired entries are archived before
	// deletion
	ArchiveEnabled bool

	// ArchivePrefix is the object key prefix for archived batches
	ArchivePrefix string
}

// DefaultRetentionPolicy returns a 90-day policy without archiving
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: 90,
		ArchivePrefix: "audit-archive",
	}
}

// Archiver stores an expired batch of entries before they are deleted
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// S3Archiver writes archive batches to an S3 bucket as NDJSON objects
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver creates an archiver over the given bucket
func NewS3Archiver(client *s3.Client, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// Archive uploads one archive object
func (a *S3Archiver) Archive(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload audit archive %s: %w", key, err)
	}
	return nil
}

// Retention runs scheduled cleanup of expired audit entries, optionally
// archiving them first
type Retention struct {
	logger   *DBLogger
	archiver Archiver
	policy   RetentionPolicy
	cron     *cron.Cron
	log      *observability.Logger
}

// NewRetention creates a retention job. archiver may be nil when
// ArchiveEnabled is false.
func NewRetention(logger *DBLogger, archiver Archiver, policy RetentionPolicy, log *observability.Logger) *Retention {
	if policy.RetentionDays <= 0 {
		policy.RetentionDays = 90
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Retention{
		logger:   logger,
		archiver: archiver,
		policy:   policy,
		cron:     cron.New(),
		log:      log,
	}
}

// Start schedules the nightly cleanup
func (r *Retention) Start() error {
	_, err := r.cron.AddFunc("0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		removed, err := r.RunOnce(ctx)
		if err != nil {
			r.log.WithError(err).Error("audit retention run failed")
			return
		}
		r.log.WithField("removed", removed).Info("audit retention run complete")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit retention: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop cancels the schedule and waits for a running job to finish
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

// archiveBatchSize bounds the rows encoded into one archive object
const archiveBatchSize = 1000

// RunOnce archives (when enabled) and deletes entries outside the
// retention window, returning the number deleted. Nothing is deleted
// until every expired row has been archived.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.policy.RetentionDays)

	if r.policy.ArchiveEnabled && r.archiver != nil {
		if err := r.archiveExpired(ctx, cutoff); err != nil {
			// Keep the rows if any archive upload failed; retry next run
			return 0, err
		}
	}

	return r.logger.DeleteThrough(ctx, cutoff)
}

// archiveExpired uploads every entry at or before the cutoff, one NDJSON
// object per batch. Offsets stay stable while paginating because rows
// inserted during the run are newer than the cutoff and never match the
// filter.
func (r *Retention) archiveExpired(ctx context.Context, cutoff time.Time) error {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")

	for offset := 0; ; offset += archiveBatchSize {
		expired, err := r.logger.Search(ctx, Filter{
			EndTime: &cutoff,
			Limit:   archiveBatchSize,
			Offset:  offset,
		})
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		body, err := encodeNDJSON(expired)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s/%s-%04d.ndjson", r.policy.ArchivePrefix, stamp, offset/archiveBatchSize)
		if err := r.archiver.Archive(ctx, key, body); err != nil {
			return err
		}

		if len(expired) < archiveBatchSize {
			return nil
		}
	}
}
