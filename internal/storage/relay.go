package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/aldoetobex/legal-consult-backend/internal/metrics"
	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
	"github.com/aldoetobex/legal-consult-backend/pkg/sanitize"
)

// Stored describes an object after a successful relay.
type Stored struct {
	URL         string
	StorageID   string
	Size        int64
	FileType    string // extension without the dot
	ContentType string
}

// Relay stages uploads on local disk and forwards them to a Provider.
type Relay struct {
	provider   Provider
	stagingDir string
	logger     log.FieldLogger
}

func NewRelay(p Provider, stagingDir string, logger log.FieldLogger) *Relay {
	return &Relay{provider: p, stagingDir: stagingDir, logger: logger}
}

// StagingDir is where files wait for upload.
func (r *Relay) StagingDir() string { return r.stagingDir }

// Relay writes src to the staging directory, uploads it under folder and
// returns the remote reference. The staged copy is removed on every path out.
func (r *Relay) Relay(ctx context.Context, folder, filename string, src io.Reader) (*Stored, error) {
	if err := os.MkdirAll(r.stagingDir, 0o755); err != nil {
		return nil, apperr.Upload(errors.Wrap(err, "create staging dir"))
	}

	safe := sanitize.FileName(filename)
	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], safe)
	staged := filepath.Join(r.stagingDir, name)

	f, err := os.OpenFile(staged, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, apperr.Upload(errors.Wrap(err, "stage file"))
	}
	defer func() {
		f.Close()
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			r.logger.WithError(err).WithField("path", staged).Warn("could not remove staged file")
		}
	}()

	size, err := io.Copy(f, src)
	if err != nil {
		return nil, apperr.Upload(errors.Wrap(err, "write staged file"))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, apperr.Upload(err)
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, apperr.Upload(errors.Wrap(err, "detect content type"))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, apperr.Upload(err)
	}

	key := path.Join(folder, name)
	url, err := r.provider.Upload(ctx, key, f, mt.String(), size)
	if err == nil && url == "" {
		err = errors.New("storage provider returned no url")
	}
	metrics.RelayUploads.WithLabelValues(r.provider.Name(), metrics.Result(err)).Inc()
	if err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"provider": r.provider.Name(),
			"key":      key,
		}).Error("relay upload failed")
		return nil, apperr.Upload(err)
	}

	fileType := sanitize.Ext(safe)
	if fileType == "" {
		fileType = sanitize.Ext(mt.Extension())
	}
	return &Stored{
		URL:         url,
		StorageID:   key,
		Size:        size,
		FileType:    fileType,
		ContentType: mt.String(),
	}, nil
}

// Delete removes a stored object. Failures are logged and swallowed.
func (r *Relay) Delete(ctx context.Context, storageID string) {
	if storageID == "" {
		return
	}
	if err := r.provider.Delete(ctx, storageID); err != nil {
		r.logger.WithError(err).WithField("storageId", storageID).Warn("could not delete stored object")
	}
}
