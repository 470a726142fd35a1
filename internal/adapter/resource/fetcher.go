// Package resource opens the dataset and geometry inputs from local files,
// HTTP(S) URLs, or S3-compatible object storage.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrUnsupportedScheme is returned for locations with an unknown URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported resource scheme")

const defaultRegion = "us-east-1"

// Config controls remote fetches.
type Config struct {
	HTTPTimeout time.Duration
	S3Region    string
	S3Endpoint  string // optional, e.g. a MinIO URL
	S3PathStyle bool
}

// ObjectGetter is the subset of the S3 client used to read objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for http(s) locations.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.http = c }
}

// WithS3Client replaces the lazily constructed S3 client.
func WithS3Client(c ObjectGetter) Option {
	return func(f *Fetcher) { f.s3 = c }
}

// Fetcher opens resources by location.
type Fetcher struct {
	cfg  Config
	http *http.Client

	mu sync.Mutex
	s3 ObjectGetter
}

// New creates a Fetcher. The S3 client is only built on first use so that
// file and HTTP deployments never load AWS configuration.
func New(cfg Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open returns a reader for location. The caller closes it.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return openFile(location)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		return f.openHTTP(ctx, u.String())
	case "s3":
		return f.openS3(ctx, u)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func openFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", location, resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Fetcher) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 location %q needs bucket and key", u.String())
	}

	client, err := f.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func (f *Fetcher) s3Client(ctx context.Context) (ObjectGetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.s3 != nil {
		return f.s3, nil
	}

	region := f.cfg.S3Region
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	f.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = f.cfg.S3PathStyle
		if f.cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(f.cfg.S3Endpoint)
		}
	})
	return f.s3, nil
}
