// Package blob stores uploaded files and hands back a public URL for them.
package blob

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/npezzotti/go-cliproom/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

const (
	KindImage = "image"
	KindVideo = "video"
	KindRaw   = "raw"

	sniffLen = 512
)

// Uploader persists the content of r and describes the stored object.
// Remove discards an object returned by Upload.
type Uploader interface {
	Upload(ctx context.Context, fileName string, r io.Reader) (types.Upload, error)
	Remove(u types.Upload) error
}

// DiskStore keeps uploads in a local directory served under baseURL.
type DiskStore struct {
	log             logrus.FieldLogger
	dir             string
	baseURL         string
	generateShortId func() (string, error)
}

func NewDiskStore(logger logrus.FieldLogger, dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &DiskStore{
		log:             logger,
		dir:             dir,
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		generateShortId: shortid.Generate,
	}, nil
}

func (d *DiskStore) Upload(ctx context.Context, fileName string, r io.Reader) (types.Upload, error) {
	if err := ctx.Err(); err != nil {
		return types.Upload{}, err
	}

	id, err := d.generateShortId()
	if err != nil {
		return types.Upload{}, fmt.Errorf("generate blob name: %w", err)
	}
	base := filepath.Base(fileName)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	name := id + strings.ToLower(filepath.Ext(base))
	if base == "" {
		base = name
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return types.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	mimeType := http.DetectContentType(head)

	f, err := os.Create(filepath.Join(d.dir, name))
	if err != nil {
		return types.Upload{}, fmt.Errorf("create blob: %w", err)
	}

	n, err := io.Copy(f, br)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return types.Upload{}, fmt.Errorf("write blob: %w", err)
	}

	upload := types.Upload{
		URL:          d.baseURL + "/" + name,
		ResourceKind: resourceKind(mimeType),
		Bytes:        n,
		MimeType:     mimeType,
		FileName:     base,
	}

	d.log.WithFields(logrus.Fields{
		"blob":  name,
		"bytes": n,
		"mime":  mimeType,
	}).Info("stored upload")

	return upload, nil
}

// Remove deletes the file behind u. Removing a missing blob is not an error.
func (d *DiskStore) Remove(u types.Upload) error {
	name, ok := strings.CutPrefix(u.URL, d.baseURL+"/")
	if !ok || name == "" || name != filepath.Base(name) {
		return fmt.Errorf("blob url %q is not served by this store", u.URL)
	}

	if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}

	d.log.WithField("blob", name).Info("removed upload")
	return nil
}

// Handler serves stored blobs. Mount it under the store's base URL with
// the prefix stripped.
func (d *DiskStore) Handler() http.Handler {
	return http.FileServer(http.Dir(d.dir))
}

func resourceKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	default:
		return KindRaw
	}
}
