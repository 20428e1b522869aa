// Package upload copies recorded sessions to an S3 bucket. Objects are keyed
// "[prefix/]<date>/<session>/<file>", mirroring the archive layout.
package upload

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/eegrec/internal/errors"
	"github.com/Iron-Ham/eegrec/internal/logging"
	"github.com/Iron-Ham/eegrec/internal/session"
)

// Client is the subset of the S3 API the uploader needs.
type Client interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures an Uploader.
type Options struct {
	Bucket string
	Prefix string
	// Region is sent as the bucket's location constraint when it is created.
	Region string
	// CreateBucket creates the bucket before the first upload.
	CreateBucket bool
}

// Object is one file of a session and the key it is stored under.
type Object struct {
	Path string
	Key  string
	Size int64
}

// Uploader puts session files into a bucket.
type Uploader struct {
	client  Client
	fs      afero.Fs
	opts    Options
	logger  *logging.Logger
	ensured bool
}

// New returns an Uploader that reads session files from fs.
func New(client Client, fs afero.Fs, opts Options, logger *logging.Logger) *Uploader {
	if logger == nil {
		logger = logging.NopLogger()
	}
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	return &Uploader{client: client, fs: fs, opts: opts, logger: logger.With("bucket", opts.Bucket)}
}

// NewS3Client builds a client from the default AWS credential chain. A
// non-empty endpoint selects an S3-compatible service with path-style
// addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Key returns the object key for file inside info.
func (u *Uploader) Key(info *session.Info, file string) string {
	return path.Join(u.opts.Prefix, info.Date, info.Name, file)
}

// Plan lists the files of info that Session would upload, in name order.
// Hidden files and subdirectories are skipped.
func (u *Uploader) Plan(info *session.Info) ([]Object, error) {
	entries, err := afero.ReadDir(u.fs, info.Dir)
	if err != nil {
		return nil, errors.NewSessionError("failed to read session directory", err).WithSessionDir(info.Dir)
	}
	var objects []Object
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		objects = append(objects, Object{
			Path: filepath.Join(info.Dir, e.Name()),
			Key:  u.Key(info, e.Name()),
			Size: e.Size(),
		})
	}
	if len(objects) == 0 {
		return nil, errors.NewSessionError("session has no files to upload", nil).WithSessionDir(info.Dir)
	}
	return objects, nil
}

// EnsureBucket creates the bucket once per Uploader. A bucket this account
// already owns is not an error.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	if u.ensured || !u.opts.CreateBucket {
		return nil
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(u.opts.Bucket)}
	// us-east-1 rejects an explicit location constraint.
	if u.opts.Region != "" && u.opts.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(u.opts.Region),
		}
	}

	_, err := u.client.CreateBucket(ctx, input)
	var owned *types.BucketAlreadyOwnedByYou
	switch {
	case err == nil:
		u.logger.Info("created bucket")
	case errors.As(err, &owned):
		u.logger.Debug("bucket already exists")
	default:
		return fmt.Errorf("failed to create bucket %s: %w", u.opts.Bucket, err)
	}
	u.ensured = true
	return nil
}

// Session uploads every file of info and returns what was stored. It stops
// at the first failed upload.
func (u *Uploader) Session(ctx context.Context, info *session.Info) ([]Object, error) {
	objects, err := u.Plan(info)
	if err != nil {
		return nil, err
	}
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	logger := u.logger.WithSession(info.Path())
	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			return objects[:i], err
		}
		if err := u.put(ctx, obj); err != nil {
			return objects[:i], err
		}
		logger.Info("uploaded object", "key", obj.Key, "bytes", obj.Size)
	}
	return objects, nil
}

func (u *Uploader) put(ctx context.Context, obj Object) error {
	f, err := u.fs.Open(obj.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", obj.Path, err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.opts.Bucket),
		Key:           aws.String(obj.Key),
		Body:          f,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(contentType(obj.Path)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", obj.Key, err)
	}
	return nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
