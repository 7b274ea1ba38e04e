package validation

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/thunderstore/registry/common/apierrors"
)

// Required icon dimensions.
const (
	IconWidth  = 256
	IconHeight = 256
)

// ValidateIcon checks that data is a PNG of exactly 256x256 within the size
// cap. The file extension is irrelevant; only the decoded content counts.
func ValidateIcon(data []byte, maxSize int64) error {
	if int64(len(data)) > maxSize {
		return apierrors.FieldValidation("icon", fmt.Sprintf("icon.png exceeds the maximum size of %d bytes", maxSize))
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return apierrors.FieldValidation("icon", "icon.png is not a valid PNG file")
	}

	if cfg.Width != IconWidth || cfg.Height != IconHeight {
		return apierrors.FieldValidation("icon", "Invalid icon dimensions, must be 256x256")
	}
	return nil
}
