package commands

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/csrgo/blobstore"
	miniostore "github.com/hupe1980/csrgo/blobstore/minio"
	s3store "github.com/hupe1980/csrgo/blobstore/s3"
)

// addStoreFlags registers the flags that configure remote inputs.
func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("s3-region", "", "AWS region for s3:// inputs")
	fs.String("s3-endpoint", "", "custom S3 endpoint URL")
	fs.String("s3-prefetch", "64MiB", "download s3:// objects up to this size in parallel parts")
	fs.String("minio-endpoint", "localhost:9000", "MinIO endpoint for minio:// inputs")
	fs.String("minio-access-key", "", "MinIO access key")
	fs.String("minio-secret-key", "", "MinIO secret key")
	fs.Bool("minio-secure", false, "use TLS for MinIO")
}

// location is a parsed input reference.
type location struct {
	scheme string
	bucket string
	name   string
}

// parseLocation splits s3://bucket/key, minio://bucket/key and local
// paths into a store location and an object name inside it.
func parseLocation(raw string) (location, error) {
	if !strings.Contains(raw, "://") {
		return location{scheme: "file", bucket: filepath.Dir(raw), name: filepath.Base(raw)}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return location{}, err
	}
	switch u.Scheme {
	case "file":
		p := u.Host + u.Path
		return location{scheme: "file", bucket: filepath.Dir(p), name: filepath.Base(p)}, nil
	case "s3", "minio":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return location{}, fmt.Errorf("%s: want %s://bucket/key", raw, u.Scheme)
		}
		return location{scheme: u.Scheme, bucket: u.Host, name: key}, nil
	default:
		return location{}, fmt.Errorf("%s: unsupported scheme %q", raw, u.Scheme)
	}
}

// openStore returns the blob store serving loc.
func openStore(ctx context.Context, v *viper.Viper, loc location) (blobstore.BlobStore, error) {
	switch loc.scheme {
	case "file":
		return blobstore.NewLocalStore(loc.bucket), nil
	case "s3":
		return newS3Store(ctx, v, loc.bucket)
	case "minio":
		return newMinioStore(v, loc.bucket)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", loc.scheme)
	}
}

func newS3Store(ctx context.Context, v *viper.Viper, bucket string) (blobstore.BlobStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := v.GetString("s3-region"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := v.GetString("s3-endpoint")
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	prefetch, err := parseBytes("s3-prefetch", v.GetString("s3-prefetch"))
	if err != nil {
		return nil, err
	}
	return s3store.NewStore(client, bucket, "", s3store.WithPrefetch(s3store.PrefetchConfig{MaxSize: prefetch})), nil
}

func newMinioStore(v *viper.Viper, bucket string) (blobstore.BlobStore, error) {
	client, err := minio.New(v.GetString("minio-endpoint"), &minio.Options{
		Creds:  credentials.NewStaticV4(v.GetString("minio-access-key"), v.GetString("minio-secret-key"), ""),
		Secure: v.GetBool("minio-secure"),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return miniostore.NewStore(client, bucket, ""), nil
}
