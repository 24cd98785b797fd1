package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chandabaz/internal/models"
)

func upload(name, contentType string, data []byte) Upload {
	return Upload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		contentType string
		want        models.MediaType
		ok          bool
	}{
		{"image/jpeg", models.MediaImage, true},
		{"image/jpg", models.MediaImage, true},
		{"IMAGE/PNG", models.MediaImage, true},
		{"video/quicktime", models.MediaVideo, true},
		{"video/x-msvideo", models.MediaVideo, true},
		{"application/pdf; charset=binary", models.MediaPDF, true},
		{"image/svg+xml", "", false},
		{"text/plain", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := TypeOf(tt.contentType)
		if ok != tt.ok || got != tt.want {
			t.Errorf("TypeOf(%q) = %q, %v; want %q, %v", tt.contentType, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidate(t *testing.T) {
	limits := Limits{MaxFiles: 2, MaxFileSize: 10}
	small := []byte("12345")

	tests := []struct {
		name    string
		uploads []Upload
		want    error
	}{
		{"none", nil, nil},
		{"ok", []Upload{upload("a.jpg", "image/jpeg", small), upload("b.pdf", "application/pdf", small)}, nil},
		{"too many", []Upload{upload("a.jpg", "image/jpeg", small), upload("b.jpg", "image/jpeg", small), upload("c.jpg", "image/jpeg", small)}, ErrTooManyFiles},
		{"too large", []Upload{upload("a.mp4", "video/mp4", bytes.Repeat([]byte("x"), 11))}, ErrFileTooLarge},
		{"unsupported", []Upload{upload("a.exe", "application/octet-stream", small)}, ErrUnsupportedType},
		{"empty", []Upload{upload("a.png", "image/png", nil)}, ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.uploads, limits)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !IsUploadError(err) {
				t.Error("expected IsUploadError")
			}
		})
	}
}

func TestFileStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "/uploads/", 1<<20)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	m, err := store.Save(context.Background(), upload("../../evil name.JPG", "image/jpeg", []byte("jpeg-bytes")))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if m.Type != models.MediaImage || m.Size != 10 || m.Filename != "evil name.JPG" {
		t.Errorf("unexpected media: %+v", m)
	}
	if !strings.HasPrefix(m.PublicID, "images/") || !strings.HasSuffix(m.PublicID, ".jpg") {
		t.Errorf("unexpected public id %q", m.PublicID)
	}
	if m.URL != "/uploads/"+m.PublicID {
		t.Errorf("unexpected url %q", m.URL)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(m.PublicID)))
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("stored content mismatch: %q, %v", data, err)
	}

	files, err := store.List(context.Background())
	if err != nil || len(files) != 1 || files[0].PublicID != m.PublicID {
		t.Fatalf("List: %v, %+v", err, files)
	}

	if err := store.Delete(context.Background(), m.PublicID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(context.Background(), m.PublicID); err != nil {
		t.Errorf("deleting a missing file must succeed: %v", err)
	}
}

func TestFileStoreRejectsOversizedStream(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "/uploads", 4)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	u := upload("a.pdf", "application/pdf", []byte("more than four"))
	u.Size = 1
	if _, err := store.Save(context.Background(), u); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}

	files, _ := store.List(context.Background())
	if len(files) != 0 {
		t.Errorf("oversized upload left files behind: %+v", files)
	}
}

func TestFileStoreDeleteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "/uploads", 0)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	for _, id := range []string{"../secret", "images/../../secret", "other/file.jpg", "file.jpg"} {
		if err := store.Delete(context.Background(), id); err == nil {
			t.Errorf("expected error for %q", id)
		}
	}
}

type failingStore struct {
	*FileStore
	failAfter int
	saves     int
}

func (f *failingStore) Save(ctx context.Context, u Upload) (models.Media, error) {
	f.saves++
	if f.saves > f.failAfter {
		return models.Media{}, errors.New("disk full")
	}
	return f.FileStore.Save(ctx, u)
}

func TestSaveAllCompensates(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "/uploads", 0)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	store := &failingStore{FileStore: fs, failAfter: 2}

	uploads := []Upload{
		upload("a.jpg", "image/jpeg", []byte("a")),
		upload("b.mp4", "video/mp4", []byte("b")),
		upload("c.pdf", "application/pdf", []byte("c")),
	}
	if _, err := SaveAll(context.Background(), store, uploads); err == nil {
		t.Fatal("expected error")
	}

	files, _ := fs.List(context.Background())
	if len(files) != 0 {
		t.Errorf("expected compensating delete, %d files remain", len(files))
	}
}
