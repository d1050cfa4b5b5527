package openai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/kailas-cloud/adoptapet/internal/domain"
)

// DefaultImageSize is the input edge length of CLIP ViT-B-32.
const DefaultImageSize = 224

const jpegQuality = 90

// prepareImage decodes an uploaded image, applies EXIF orientation, shrinks it to fit
// size x size and re-encodes it as a JPEG data URI. Undecodable input fails with
// domain.ErrEncoding.
func prepareImage(data []byte, size int) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image is empty", domain.ErrEncoding)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: decode image: %w", domain.ErrEncoding, err)
	}
	if isEmpty(img) {
		return "", fmt.Errorf("%w: image has no pixels", domain.ErrEncoding)
	}

	if size <= 0 {
		size = DefaultImageSize
	}
	b := img.Bounds()
	if b.Dx() > size || b.Dy() > size {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("%w: encode image: %w", domain.ErrEncoding, err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isEmpty(img image.Image) bool {
	b := img.Bounds()
	return b.Dx() == 0 || b.Dy() == 0
}
