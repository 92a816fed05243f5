package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	apperrors "go-medical-image-analyzer/internal/errors"
	"go-medical-image-analyzer/internal/logger"

	"github.com/sirupsen/logrus"
)

// ValidatedImage carries upload bytes that passed validation, tagged
// with what the decoder found. Image is a decoded handle usable for
// previews; Data is what travels to the models.
type ValidatedImage struct {
	Data   []byte
	Format string
	Width  int
	Height int
	Image  image.Image
}

// ImageValidator checks that uploaded bytes are a structurally complete
// raster image of a supported format
type ImageValidator interface {
	Validate(data []byte) (*ValidatedImage, error)
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
}

type imageValidator struct {
	maxSize int64
}

// NewImageValidator creates a validator that rejects payloads larger
// than maxSize bytes. maxSize <= 0 disables the size check.
func NewImageValidator(maxSize int64) ImageValidator {
	return &imageValidator{maxSize: maxSize}
}

// Validate is pure: it either tags the bytes as a valid image or
// returns a validation error, with no side effects in either case.
func (v *imageValidator) Validate(data []byte) (*ValidatedImage, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("empty image payload", nil)
	}
	if v.maxSize > 0 && int64(len(data)) > v.maxSize {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("image exceeds size limit: %d bytes (max %d)", len(data), v.maxSize), nil)
	}
	if !hasKnownSignature(data) {
		return nil, apperrors.NewValidationError("unsupported image format (want PNG or JPEG)", nil)
	}

	// Full decode, not just the header: a truncated or corrupt payload
	// must fail here rather than at the upstream API.
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image", err)
	}

	bounds := img.Bounds()
	logger.WithFields(logrus.Fields{
		"format": format,
		"width":  bounds.Dx(),
		"height": bounds.Dy(),
		"bytes":  len(data),
	}).Debug("Image validated")

	return &ValidatedImage{
		Data:   data,
		Format: strings.ToLower(format),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Image:  img,
	}, nil
}

func hasKnownSignature(data []byte) bool {
	for _, signature := range imageSignatures {
		if bytes.HasPrefix(data, signature) {
			return true
		}
	}
	return false
}
