package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// S3Gateway implements the StorageGateway interface on top of an S3 bucket.
// Folders are key prefixes; object IDs are full keys. Moving an object is a
// copy followed by a delete, since S3 has no rename.
type S3Gateway struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	label    string
}

var _ gdsync.StorageGateway = (*S3Gateway)(nil)

// NewS3Gateway wraps an S3 client for one bucket. label names the account
// in errors.
func NewS3Gateway(client *s3.Client, bucket string, label string) *S3Gateway {
	return &S3Gateway{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		label:    label,
	}
}

// List returns the objects and sub-prefixes directly under folder.
func (g *S3Gateway) List(ctx context.Context, folder string) ([]gdsync.Object, error) {
	prefix := normalizePrefix(folder)

	var objects []gdsync.Object
	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(g.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, g.wrap("listing prefix", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// The prefix's own zero-byte marker is not a child.
			if key == prefix {
				continue
			}
			objects = append(objects, gdsync.Object{
				ID:         key,
				Name:       path.Base(key),
				Size:       aws.ToInt64(obj.Size),
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
		for _, cp := range page.CommonPrefixes {
			sub := aws.ToString(cp.Prefix)
			objects = append(objects, gdsync.Object{
				ID:       strings.TrimSuffix(sub, "/"),
				Name:     path.Base(strings.TrimSuffix(sub, "/")),
				IsFolder: true,
			})
		}
	}
	return objects, nil
}

// Download streams the object's content to w.
func (g *S3Gateway) Download(ctx context.Context, id string, w io.Writer) error {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return g.wrap("downloading object", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading download stream: %w", err)
	}
	return nil
}

// Upload stores content at folder/name. S3 overwrites by key, so the
// overwrite-by-name contract holds without a lookup.
func (g *S3Gateway) Upload(ctx context.Context, folder string, name string, r io.Reader, size int64, meta map[string]string) (string, error) {
	key := normalizePrefix(folder) + name

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := g.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return "", g.wrap("uploading object", err)
	}
	return key, nil
}

// Move copies the object into toFolder and deletes the original.
func (g *S3Gateway) Move(ctx context.Context, id string, fromFolder string, toFolder string) error {
	destKey := normalizePrefix(toFolder) + path.Base(id)

	_, err := g.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(g.bucket),
		CopySource: aws.String(url.PathEscape(g.bucket + "/" + id)),
		Key:        aws.String(destKey),
	})
	if err != nil {
		return g.wrap("copying object", err)
	}

	_, err = g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		// The copy already landed; a failed delete leaves a duplicate the
		// next run will move again.
		return g.wrap("deleting original after copy", err)
	}
	return nil
}

// EnsureFolder materializes the sub-prefix parent/name and returns it. A
// zero-byte marker object keeps the prefix visible in bucket consoles;
// writing it repeatedly is harmless.
func (g *S3Gateway) EnsureFolder(ctx context.Context, parent string, name string) (string, error) {
	folder := normalizePrefix(parent) + name

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(folder + "/"),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", g.wrap("creating folder marker", err)
	}
	return folder, nil
}

func (g *S3Gateway) wrap(action string, err error) error {
	return fmt.Errorf("%s (%s account, bucket %s): %w", action, g.label, g.bucket, err)
}

// normalizePrefix maps a folder identifier to its canonical key prefix:
// trailing slash present, except for the bucket root which is empty.
func normalizePrefix(folder string) string {
	if folder == "" {
		return ""
	}
	return strings.TrimSuffix(folder, "/") + "/"
}
