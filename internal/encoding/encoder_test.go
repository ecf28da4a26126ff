package encoding_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/png"
	"io"
	"strings"
	"testing"

	"stockmeta/internal/encoding"
	"stockmeta/internal/logging"
	"stockmeta/internal/queue"
	"stockmeta/internal/services"
	"stockmeta/internal/testsupport"
)

type failingSource struct{ err error }

func (f failingSource) Open() (io.ReadCloser, error) { return nil, f.err }

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }
func (brokenReader) Close() error             { return nil }

type brokenSource struct{}

func (brokenSource) Open() (io.ReadCloser, error) { return brokenReader{}, nil }

func TestEncodeProducesDataURI(t *testing.T) {
	enc := encoding.NewEncoder(nil, logging.NewNop())
	item := queue.Item{ID: 1, Name: "x.png", MediaType: "image/png", Source: queue.BytesSource("hello")}

	uri, err := enc.Encode(context.Background(), item)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))
	if uri != want {
		t.Fatalf("uri = %q, want %q", uri, want)
	}
}

func TestEncodeOpenFailureIsEncodingError(t *testing.T) {
	enc := encoding.NewEncoder(nil, logging.NewNop())
	_, err := enc.Encode(context.Background(), queue.Item{ID: 2, MediaType: "image/png", Source: failingSource{err: errors.New("gone")}})
	if services.Kind(err) != services.KindEncoding {
		t.Fatalf("expected encoding error, got %v", err)
	}
	if services.DisplayMessage(err) != "Failed to read file." {
		t.Fatalf("unexpected display message %q", services.DisplayMessage(err))
	}
}

func TestEncodeReadFailureIsEncodingError(t *testing.T) {
	enc := encoding.NewEncoder(nil, logging.NewNop())
	_, err := enc.Encode(context.Background(), queue.Item{ID: 3, MediaType: "image/png", Source: brokenSource{}})
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
	_, err = enc.Encode(context.Background(), queue.Item{ID: 4, MediaType: "image/png"})
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected encoding error for missing source, got %v", err)
	}
}

func TestEncodeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enc := encoding.NewEncoder(nil, logging.NewNop())
	_, err := enc.Encode(ctx, queue.Item{ID: 5, MediaType: "image/png", Source: queue.BytesSource("abc")})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected canceled encoding error, got %v", err)
	}
}

func decodePayload(t *testing.T, uri, mediaType string) image.Image {
	t.Helper()
	prefix := "data:" + mediaType + ";base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("unexpected uri prefix %q", uri[:min(len(uri), 40)])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	return img
}

func TestEncodeDownscalesLargeImages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxDimension(16))
	enc := encoding.NewEncoder(cfg, logging.NewNop())
	item := queue.Item{ID: 6, Name: "wide.png", MediaType: "image/png", Source: queue.BytesSource(testsupport.PNGBytes(t, 64, 32))}

	uri, err := enc.Encode(context.Background(), item)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	bounds := decodePayload(t, uri, "image/png").Bounds()
	if bounds.Dx() != 16 || bounds.Dy() != 8 {
		t.Fatalf("expected 16x8, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeKeepsSmallImagesUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxDimension(128))
	enc := encoding.NewEncoder(cfg, logging.NewNop())
	original := testsupport.PNGBytes(t, 8, 8)

	uri, err := enc.Encode(context.Background(), queue.Item{ID: 7, MediaType: "image/png", Source: queue.BytesSource(original)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if uri != encoding.DataURI("image/png", original) {
		t.Fatal("small image should pass through unchanged")
	}
}

func TestEncodePassesThroughUndecodable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxDimension(4))
	enc := encoding.NewEncoder(cfg, logging.NewNop())
	for _, mediaType := range []string{"image/png", "image/webp"} {
		uri, err := enc.Encode(context.Background(), queue.Item{ID: 8, MediaType: mediaType, Source: queue.BytesSource("not an image")})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if uri != encoding.DataURI(mediaType, []byte("not an image")) {
			t.Fatalf("expected passthrough for %s", mediaType)
		}
	}
}
