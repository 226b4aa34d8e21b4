// Package assets stores signup-page images in S3 and generates a resized
// thumbnail alongside each upload.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	_ "image/gif" // decode support

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decode support

	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

const (
	maxUploadBytes = 10 << 20
	thumbnailWidth = 320
)

// objectPutter is the slice of the S3 client the service uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Service uploads page assets to a public bucket.
type Service struct {
	client    objectPutter
	bucket    string
	region    string
	cdnDomain string
}

// New builds the asset service, or an error when the bucket is not
// configured. A non-empty cdnDomain replaces the raw S3 host in public
// URLs.
func New(ctx context.Context, bucket, region, cdnDomain string) (*Service, error) {
	if bucket == "" {
		return nil, fmt.Errorf("assets bucket not configured")
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &Service{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		region:    region,
		cdnDomain: cdnDomain,
	}, nil
}

// Upload describes a stored asset.
type Upload struct {
	Filename     string
	ContentType  string
	OriginalURL  string
	ThumbnailURL string
	SizeBytes    int64
}

// Store uploads an image and its thumbnail, returning both public URLs.
// Non-image payloads are rejected.
func (s *Service) Store(ctx context.Context, filename string, data []byte) (*Upload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	key := assetKey(filename, format)
	contentType := "image/" + format
	if err := s.put(ctx, key, data, contentType); err != nil {
		return nil, err
	}

	thumb, thumbType, err := encodeThumbnail(img, format)
	if err != nil {
		return nil, fmt.Errorf("building thumbnail: %w", err)
	}
	thumbKey := thumbnailKey(key)
	if err := s.put(ctx, thumbKey, thumb, thumbType); err != nil {
		return nil, err
	}

	logger.Info("asset stored", "key", key, "bytes", len(data))
	return &Upload{
		Filename:     path.Base(key),
		ContentType:  contentType,
		OriginalURL:  s.publicURL(key),
		ThumbnailURL: s.publicURL(thumbKey),
		SizeBytes:    int64(len(data)),
	}, nil
}

func (s *Service) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (s *Service) publicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func assetKey(filename, format string) string {
	base := sanitizeFilename(strings.TrimSuffix(filename, path.Ext(filename)))
	if base == "" {
		base = "asset"
	}
	return fmt.Sprintf("pages/%s-%s.%s", uuid.New().String()[:8], base, extensionFor(format))
}

func thumbnailKey(key string) string {
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext) + "-thumb" + ext
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "png", "gif", "webp":
		return format
	}
	return "img"
}

// encodeThumbnail scales preserving aspect ratio. Images already at or
// under the thumbnail width are re-encoded as-is. WebP and GIF thumbnails
// come out as PNG since the stdlib has no encoders for them.
func encodeThumbnail(img image.Image, format string) ([]byte, string, error) {
	bounds := img.Bounds()
	if bounds.Dx() > thumbnailWidth {
		height := bounds.Dy() * thumbnailWidth / bounds.Dx()
		dst := image.NewRGBA(image.Rect(0, 0, thumbnailWidth, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	}
}
