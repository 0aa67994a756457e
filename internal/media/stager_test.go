package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = b
	m.types[bucket+"/"+key] = contentType
	return nil
}

func (m *memStore) PresignedGetObject(_ context.Context, bucket, key string, _ time.Duration) (*url.URL, error) {
	return url.Parse("https://minio.test/" + bucket + "/" + key + "?X-Amz-Signature=x")
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestStager(store ObjectStore) *Stager {
	s := NewStager(store, "inbox-media")
	s.now = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }
	s.newID = func() string { return "obj-1" }
	return s
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := ObjectKey("conv-1", "abc", "Plan.PDF", at); got != "conversations/conv-1/2026/03/abc.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ObjectKey(" ", "abc", "noext", at); got != "conversations/unassigned/2026/03/abc" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ObjectKey("a/b", "abc", "x.jpg", at); got != "conversations/a_b/2026/03/abc.jpg" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ThumbnailKey("conversations/c/2026/03/abc.png"); got != "conversations/c/2026/03/abc_thumb.jpg" {
		t.Fatalf("unexpected thumbnail key %q", got)
	}
}

func TestKindOf(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":      "image",
		"VIDEO/mp4":       "video",
		"audio/ogg":       "audio",
		"application/pdf": "document",
		"":                "document",
	}
	for ct, want := range cases {
		if got := KindOf(ct); got != want {
			t.Fatalf("%q: expected %s, got %s", ct, want, got)
		}
	}
}

func TestThumbnail_FitsBox(t *testing.T) {
	out, err := Thumbnail(bytes.NewReader(pngBytes(t, 800, 400)))
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg, got %s", format)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 320 {
		t.Fatalf("expected 320x320, got %v", b)
	}
}

func TestStage_ImageGetsPreview(t *testing.T) {
	store := newMemStore()
	s := newTestStager(store)

	obj, err := s.Stage(context.Background(), "conv-1", "living-room.png", "image/png", bytes.NewReader(pngBytes(t, 64, 48)))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if obj.Key != "conversations/conv-1/2026/03/obj-1.png" || obj.Type != "image" || obj.Filename != "living-room.png" {
		t.Fatalf("unexpected object %+v", obj)
	}
	if !strings.HasPrefix(obj.URL, "https://minio.test/inbox-media/conversations/conv-1/") {
		t.Fatalf("unexpected url %q", obj.URL)
	}
	if !strings.Contains(obj.ThumbnailURL, "obj-1_thumb.jpg") {
		t.Fatalf("expected thumbnail url, got %q", obj.ThumbnailURL)
	}
	if store.types["inbox-media/conversations/conv-1/2026/03/obj-1_thumb.jpg"] != "image/jpeg" {
		t.Fatalf("thumbnail not stored as jpeg")
	}
}

func TestStage_DocumentAndLimits(t *testing.T) {
	store := newMemStore()
	s := newTestStager(store)
	ctx := context.Background()

	obj, err := s.Stage(ctx, "conv-1", "contract.pdf", "", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if obj.Type != "document" || obj.MimeType != "application/octet-stream" || obj.ThumbnailURL != "" {
		t.Fatalf("unexpected object %+v", obj)
	}

	if _, err := s.Stage(ctx, "conv-1", "a.txt", "text/plain", strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	big := bytes.NewReader(make([]byte, MaxUploadBytes+1))
	if _, err := s.Stage(ctx, "conv-1", "a.bin", "application/zip", big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	store.putErr = errors.New("bucket gone")
	if _, err := s.Stage(ctx, "conv-1", "a.txt", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestStage_BrokenImageStillUploads(t *testing.T) {
	store := newMemStore()
	s := newTestStager(store)

	obj, err := s.Stage(context.Background(), "conv-1", "broken.jpg", "image/jpeg", strings.NewReader("not an image"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if obj.ThumbnailURL != "" {
		t.Fatalf("expected no thumbnail for undecodable image")
	}
}
