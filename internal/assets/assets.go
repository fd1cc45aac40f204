// Package assets uploads editor images to the asset host and returns their durable URL.
package assets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"wedlink/internal/config"
	"wedlink/lib/sl"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured = errors.New("asset host is not configured")
	ErrNotImage      = errors.New("only images can be uploaded")
)

// Host stores an uploaded file and returns the URL it is served from.
type Host interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
	log    *slog.Logger
}

// NewCloudinary returns nil when no cloud is configured; Upload on nil fails with ErrNotConfigured.
func NewCloudinary(conf config.CloudinaryConfig, log *slog.Logger) (*Cloudinary, error) {
	if conf.CloudName == "" {
		return nil, nil
	}
	cld, err := cloudinary.NewFromParams(conf.CloudName, conf.ApiKey, conf.ApiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &Cloudinary{
		cld:    cld,
		folder: conf.Folder,
		log:    log.With(sl.Module("assets")),
	}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	body, err := SniffImage(r)
	if err != nil {
		return "", err
	}

	publicID := uuid.NewString()
	resp, err := c.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		PublicID:       publicID,
		Folder:         c.folder,
		ResourceType:   "image",
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	c.log.Debug("image uploaded",
		slog.String("name", path.Base(name)),
		slog.String("public_id", resp.PublicID),
	)
	return resp.SecureURL, nil
}

// SniffImage checks the leading bytes of r and returns a reader over the whole content.
func SniffImage(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 3072)
	head, err := br.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrNotImage
	}
	if mt := mimetype.Detect(head); !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	return br, nil
}
