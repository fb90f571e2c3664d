package aws

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"codeshare-server/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "code/"

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type documentStore struct {
	client s3API
	bucket string
}

// NewDocumentStore creates an S3-backed store using the default AWS
// credential chain.
func NewDocumentStore(ctx context.Context, bucketName string) (core.DocumentStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return newDocumentStore(s3.NewFromConfig(cfg), bucketName), nil
}

func newDocumentStore(client s3API, bucket string) *documentStore {
	return &documentStore{client: client, bucket: bucket}
}

// objectKey keeps arbitrary titles (including "" and ones containing "/")
// as a single flat key under keyPrefix.
func objectKey(title string) string {
	return keyPrefix + base64.RawURLEncoding.EncodeToString([]byte(title))
}

func titleFromKey(key string) (string, bool) {
	encoded, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *documentStore) Get(ctx context.Context, title string) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"title": title, "bucket": s.bucket})

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(title)),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			log.Debug("Document with specified title not found")
			return nil, fmt.Errorf("document %q: %w", title, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to get document")
		return nil, fmt.Errorf("failed to get document %q: %w", title, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %w", err)
	}

	doc := &core.Document{Title: title, Code: string(data)}
	if resp.LastModified != nil {
		doc.UpdatedAt = resp.LastModified.UTC()
	}
	return doc, nil
}

func (s *documentStore) Set(ctx context.Context, title, code string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(title)),
		Body:        bytes.NewReader([]byte(code)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		logrus.WithError(err).WithField("title", title).Error("Failed to upload document")
		return fmt.Errorf("failed to upload document: %w", err)
	}
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})

	documents := []core.Document{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			logrus.WithError(err).Error("Failed to list documents")
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}

		for _, object := range page.Contents {
			title, ok := titleFromKey(aws.ToString(object.Key))
			if !ok {
				continue
			}
			doc, err := s.Get(ctx, title)
			if err != nil {
				logrus.WithError(err).WithField("key", aws.ToString(object.Key)).Warn("Failed to fetch listed document, skipping")
				continue
			}
			if doc.UpdatedAt.IsZero() && object.LastModified != nil {
				doc.UpdatedAt = object.LastModified.UTC()
			}
			documents = append(documents, *doc)
		}
	}
	return documents, nil
}
