package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/booksy/booksy-server/internal/domain"
)

// MaxCoverBytes caps accepted cover uploads.
const MaxCoverBytes = 10 << 20

var (
	// ErrUnsupportedFormat is returned for data that is not a decodable image.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned for covers over MaxCoverBytes.
	ErrTooLarge = errors.New("image too large")
)

// Processor validates cover images, stores them and computes their
// placeholders.
type Processor struct {
	storage *Storage
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storage *Storage, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{storage: storage, logger: logger}
}

// Storage returns the underlying file store.
func (p *Processor) Storage() *Storage { return p.storage }

// Process stores data as the cover of bookID and describes it. A failed
// BlurHash is logged and left empty; the cover is still saved.
func (p *Processor) Process(bookID string, data []byte) (*domain.ImageFileInfo, error) {
	if len(data) > MaxCoverBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if err := p.storage.Save(bookID, data); err != nil {
		return nil, fmt.Errorf("failed to save cover: %w", err)
	}

	info := &domain.ImageFileInfo{
		Format: format,
		Size:   int64(len(data)),
		Hash:   Hash(data),
	}
	if info.BlurHash, err = ComputeBlurHash(data); err != nil {
		p.logger.Warn("failed to compute blurhash", "book_id", bookID, "error", err)
	}

	p.logger.Debug("saved cover",
		"book_id", bookID,
		"format", format,
		"size", info.Size,
		"hash", info.Hash[:8]+"...",
	)
	return info, nil
}

// ContentType maps a decoder format name to its MIME type.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
