package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"bluray-lister/utils"
)

type fakePutter struct {
	failures int
	calls    int
	inputs   []*s3.PutObjectInput
	bodies   [][]byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("slow down")
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "disc.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestS3UploadPublishesOptimisedJPEG(t *testing.T) {
	putter := &fakePutter{failures: 1}
	up, err := NewS3Uploader(putter, S3Options{
		Bucket:  "my-bucket",
		Region:  "us-west-2",
		MaxEdge: 64,
		Retry:   utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewS3Uploader: %v", err)
	}
	up.newKey = func() string { return "fixed-id" }

	url, err := up.Upload(context.Background(), writePNG(t, 200, 100))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if want := "https://my-bucket.s3.us-west-2.amazonaws.com/bluray-images/fixed-id.jpg"; url != want {
		t.Errorf("url = %q; want %q", url, want)
	}
	if putter.calls != 2 {
		t.Errorf("PutObject called %d times; want 2 (one retry)", putter.calls)
	}

	in := putter.inputs[0]
	if aws.ToString(in.Bucket) != "my-bucket" || aws.ToString(in.Key) != "bluray-images/fixed-id.jpg" {
		t.Errorf("bucket/key = %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if in.ACL != types.ObjectCannedACLPublicRead {
		t.Errorf("ACL = %q; want public-read", in.ACL)
	}
	if aws.ToString(in.ContentType) != "image/jpeg" {
		t.Errorf("ContentType = %q", aws.ToString(in.ContentType))
	}

	img, format, err := image.Decode(bytes.NewReader(putter.bodies[0]))
	if err != nil {
		t.Fatalf("decode uploaded body: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q; want jpeg", format)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("uploaded size = %dx%d; want 64x32", b.Dx(), b.Dy())
	}
}

func TestS3UploadErrors(t *testing.T) {
	if _, err := NewS3Uploader(&fakePutter{}, S3Options{}); err == nil {
		t.Errorf("expected error for missing bucket")
	}

	up, _ := NewS3Uploader(&fakePutter{}, S3Options{Bucket: "b"})
	if _, err := up.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Errorf("expected error for missing file")
	}

	junk := filepath.Join(t.TempDir(), "junk.jpg")
	_ = os.WriteFile(junk, []byte("not an image"), 0o644)
	if _, err := up.Upload(context.Background(), junk); err == nil || !strings.Contains(err.Error(), "optimise") {
		t.Errorf("expected optimise error, got %v", err)
	}
}
