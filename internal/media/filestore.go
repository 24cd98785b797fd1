package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"chandabaz/internal/metrics"
	"chandabaz/internal/models"
)

// Store persists media files
type Store interface {
	Save(ctx context.Context, u Upload) (models.Media, error)
	Delete(ctx context.Context, publicID string) error
	// List returns every stored file
	List(ctx context.Context) ([]StoredFile, error)
}

// StoredFile describes one file in a Store
type StoredFile struct {
	PublicID string
	ModTime  time.Time
}

// folders per media type, relative to the store root
var folders = map[models.MediaType]string{
	models.MediaImage: "images",
	models.MediaVideo: "videos",
	models.MediaPDF:   "documents",
}

// FileStore keeps media on the local disk and serves them under a public URL prefix
type FileStore struct {
	dir       string
	publicURL string
	maxSize   int64
}

// NewFileStore creates the storage directories if needed
func NewFileStore(dir, publicURL string, maxSize int64) (*FileStore, error) {
	for _, folder := range folders {
		if err := os.MkdirAll(filepath.Join(dir, folder), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}
	return &FileStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/"), maxSize: maxSize}, nil
}

// Dir returns the root directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Save streams u to a temp file, syncs it and renames it into place.
// The public ID is "<folder>/<uuid><ext>".
func (s *FileStore) Save(ctx context.Context, u Upload) (models.Media, error) {
	if err := ctx.Err(); err != nil {
		return models.Media{}, err
	}

	a, ok := allowed[NormalizeContentType(u.ContentType)]
	if !ok {
		return models.Media{}, fmt.Errorf("%w: %s", ErrUnsupportedType, u.ContentType)
	}

	publicID := path.Join(folders[a.Type], uuid.NewString()+a.Ext)
	fullPath := filepath.Join(s.dir, filepath.FromSlash(publicID))
	tmpPath := fullPath + ".tmp"

	src, err := u.Open()
	if err != nil {
		return models.Media{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return models.Media{}, fmt.Errorf("failed to create temp file: %w", err)
	}

	var reader io.Reader = src
	if s.maxSize > 0 {
		reader = io.LimitReader(src, s.maxSize+1)
	}

	size, err := io.Copy(f, reader)
	if err == nil && s.maxSize > 0 && size > s.maxSize {
		err = fmt.Errorf("%w: %s", ErrFileTooLarge, u.Filename)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, ErrFileTooLarge) {
			return models.Media{}, err
		}
		return models.Media{}, fmt.Errorf("failed to write upload: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return models.Media{}, fmt.Errorf("failed to move upload into place: %w", err)
	}

	metrics.UploadsStored.WithLabelValues(string(a.Type)).Inc()
	metrics.UploadBytes.Add(float64(size))

	return models.Media{
		URL:      s.publicURL + "/" + publicID,
		PublicID: publicID,
		Type:     a.Type,
		Filename: filepath.Base(u.Filename),
		Size:     size,
	}, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *FileStore) Delete(_ context.Context, publicID string) error {
	fullPath, err := s.resolve(publicID)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", publicID, err)
	}
	return nil
}

// List walks the media folders, skipping in-flight temp files
func (s *FileStore) List(ctx context.Context) ([]StoredFile, error) {
	var files []StoredFile
	for _, folder := range folders {
		entries, err := os.ReadDir(filepath.Join(s.dir, folder))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", folder, err)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			files = append(files, StoredFile{PublicID: path.Join(folder, e.Name()), ModTime: info.ModTime()})
		}
	}
	return files, nil
}

// resolve maps a public ID to a path inside the store root
func (s *FileStore) resolve(publicID string) (string, error) {
	clean := path.Clean("/" + publicID)[1:]
	folder, _, ok := strings.Cut(clean, "/")
	if !ok || clean != publicID {
		return "", fmt.Errorf("invalid media id %q", publicID)
	}
	known := false
	for _, f := range folders {
		known = known || f == folder
	}
	if !known {
		return "", fmt.Errorf("invalid media id %q", publicID)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// SaveAll stores every upload. If one fails, the files already written are removed.
func SaveAll(ctx context.Context, store Store, uploads []Upload) ([]models.Media, error) {
	saved := make([]models.Media, 0, len(uploads))
	for _, u := range uploads {
		m, err := store.Save(ctx, u)
		if err != nil {
			DeleteAll(context.WithoutCancel(ctx), store, publicIDs(saved))
			return nil, err
		}
		saved = append(saved, m)
	}
	return saved, nil
}

// DeleteAll removes files, logging failures; the orphan sweeper retries later
func DeleteAll(ctx context.Context, store Store, ids []string) {
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			slog.Warn("Failed to delete media", "public_id", id, "error", err)
		}
	}
}

func publicIDs(media []models.Media) []string {
	ids := make([]string, 0, len(media))
	for _, m := range media {
		ids = append(ids, m.PublicID)
	}
	return ids
}
