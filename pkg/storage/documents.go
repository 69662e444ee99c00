package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/dernek/pkg/apierror"
	"github.com/platinummonkey/dernek/pkg/observability"
)

// maxDocumentsPerBeneficiary bounds a single document listing
const maxDocumentsPerBeneficiary = 500

// ObjectAPI is the subset of the S3 client used for documents
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Config holds the object store settings
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Client builds an S3 client and makes sure the bucket exists
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// static keys for MinIO or explicit AWS credentials
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}
	return client, nil
}

func ensureBucket(ctx context.Context, client ObjectAPI, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return nil
	}
	return fmt.Errorf("failed to ensure bucket %s: %w", bucket, err)
}

// Upload is a document to store
type Upload struct {
	BeneficiaryID string
	DocumentType  string
	FileName      string
	ContentType   string
	UploadedBy    string
	Body          io.Reader
}

// DocumentStore keeps document bodies in S3 and their metadata in the documents table
type DocumentStore struct {
	objects ObjectAPI
	bucket  string
	records *RecordStore
	metrics *observability.OTelMetrics
}

// NewDocumentStore creates a document store
func NewDocumentStore(objects ObjectAPI, bucket string, records *RecordStore) *DocumentStore {
	return &DocumentStore{objects: objects, bucket: bucket, records: records}
}

// WithMetrics records operation durations on m
func (d *DocumentStore) WithMetrics(m *observability.OTelMetrics) *DocumentStore {
	d.metrics = m
	d.records.WithMetrics(m)
	return d
}

// Upload stores the body under documents/<beneficiary>/<uuid><ext> and records it.
// The object is removed again when the metadata insert fails.
func (d *DocumentStore) Upload(ctx context.Context, in Upload) (Record, error) {
	if in.BeneficiaryID == "" || in.DocumentType == "" || in.Body == nil {
		return nil, apierror.BadRequest("Dosya, beneficiary ID ve document type gerekli")
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	key := objectKey(in.BeneficiaryID, in.FileName)
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, span := tracer.Start(ctx, "S3.PutObject",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("s3.bucket", d.bucket),
			attribute.String("s3.key", key),
			attribute.Int("content.size", len(data)),
		),
	)
	_, err = d.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"checksum-sha256": checksum},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload to s3")
		span.End()
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}
	span.End()

	row, err := d.records.Insert(ctx, Record{
		"beneficiary_id": in.BeneficiaryID,
		"document_type":  in.DocumentType,
		"file_name":      in.FileName,
		"object_key":     key,
		"content_type":   contentType,
		"size_bytes":     int64(len(data)),
		"checksum":       checksum,
		"uploaded_by":    in.UploadedBy,
	})
	if err != nil {
		if _, delErr := d.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(key),
		}); delErr != nil {
			observability.GetLogger(ctx).WithError(delErr).Warnf("failed to remove orphaned document %s", key)
		}
		return nil, err
	}
	return row, nil
}

// List returns the documents recorded for a beneficiary
func (d *DocumentStore) List(ctx context.Context, beneficiaryID string) ([]Record, error) {
	if beneficiaryID == "" {
		return nil, apierror.BadRequest("Beneficiary ID gerekli")
	}
	rows, _, err := d.records.List(ctx, ListQuery{
		Limit:   maxDocumentsPerBeneficiary,
		Filters: map[string]string{"beneficiary_id": beneficiaryID},
	})
	return rows, err
}

// Ping checks that the bucket is reachable
func (d *DocumentStore) Ping(ctx context.Context) error {
	_, err := d.objects.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", d.bucket, err)
	}
	return nil
}

func objectKey(beneficiaryID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	beneficiary := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(beneficiaryID)
	return fmt.Sprintf("documents/%s/%s%s", beneficiary, uuid.NewString(), ext)
}
