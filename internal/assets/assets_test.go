package assets

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedObject struct {
	key         string
	contentType string
	size        int
}

type fakePutter struct {
	objects []capturedObject
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects = append(f.objects, capturedObject{
		key:         *in.Key,
		contentType: *in.ContentType,
		size:        len(data),
	})
	return &s3.PutObjectOutput{}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestStore(t *testing.T) {
	fake := &fakePutter{}
	svc := &Service{client: fake, bucket: "inkwell-assets", region: "us-east-1"}

	up, err := svc.Store(context.Background(), "Hero Image.png", pngBytes(t, 800, 400))
	require.NoError(t, err)

	require.Len(t, fake.objects, 2)
	assert.Contains(t, fake.objects[0].key, "hero-image")
	assert.Equal(t, "image/png", fake.objects[0].contentType)
	assert.Contains(t, fake.objects[1].key, "-thumb")

	assert.Equal(t, "image/png", up.ContentType)
	assert.Contains(t, up.OriginalURL, "https://inkwell-assets.s3.us-east-1.amazonaws.com/pages/")
	assert.Contains(t, up.ThumbnailURL, "-thumb")
	assert.Equal(t, int64(len(pngBytes(t, 800, 400))), up.SizeBytes)
}

func TestPublicURLPrefersCDNDomain(t *testing.T) {
	svc := &Service{bucket: "inkwell-assets", region: "us-east-1"}
	assert.Equal(t, "https://inkwell-assets.s3.us-east-1.amazonaws.com/pages/x.png",
		svc.publicURL("pages/x.png"))

	svc.cdnDomain = "cdn.inkwell.test"
	assert.Equal(t, "https://cdn.inkwell.test/pages/x.png", svc.publicURL("pages/x.png"))
}

func TestStoreRejectsNonImage(t *testing.T) {
	svc := &Service{client: &fakePutter{}, bucket: "b", region: "r"}
	_, err := svc.Store(context.Background(), "notes.txt", []byte("plain text"))
	assert.Error(t, err)
}

func TestStoreRejectsEmpty(t *testing.T) {
	svc := &Service{client: &fakePutter{}, bucket: "b", region: "r"}
	_, err := svc.Store(context.Background(), "x.png", nil)
	assert.Error(t, err)
}

func TestThumbnailScalesDown(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	thumb, contentType, err := encodeThumbnail(img, "png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	decoded, _, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 320, decoded.Bounds().Dx())
	assert.Equal(t, 240, decoded.Bounds().Dy())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my-hero-image", sanitizeFilename("My Hero Image"))
	assert.Equal(t, "logo_2", sanitizeFilename("Logo_2!@#"))
	assert.Equal(t, "", sanitizeFilename("???"))
}
