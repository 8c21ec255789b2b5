package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	Extension   = "pdf"
	ContentType = "application/pdf"
)

// ErrPublish wraps object storage upload failures.
var ErrPublish = errors.New("certificate upload failed")

// PutObjectAPI is the subset of the S3 client the publisher needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config is the fixed storage location; StorageHost is used only to build
// public URLs.
type Config struct {
	Bucket      string
	StorageHost string
}

// S3Publisher uploads certificates as public objects named <identity>.pdf.
// Uploads always overwrite: there is no versioning or conflict detection.
type S3Publisher struct {
	client PutObjectAPI
	cfg    Config
}

func NewS3Publisher(client PutObjectAPI, cfg Config) *S3Publisher {
	return &S3Publisher{client: client, cfg: cfg}
}

// Key returns the object key for identity.
func Key(identity string) string {
	return identity + "." + Extension
}

// PublicURL is derived from bucket and key alone, no request is made. The key
// is path-escaped so the link resolves to exactly the uploaded object.
func (p *S3Publisher) PublicURL(identity string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.cfg.Bucket, p.cfg.StorageHost, url.PathEscape(Key(identity)))
}

func (p *S3Publisher) Publish(ctx context.Context, identity string, body []byte) (string, error) {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(Key(identity)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(ContentType),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrPublish, Key(identity), err)
	}
	return p.PublicURL(identity), nil
}
