package attachments

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// PreviewMaxWidth is the pixel width previews are resized down to.
const PreviewMaxWidth = 512

// Preview produces a JPEG preview of an image blob, resized to at most
// PreviewMaxWidth while preserving aspect ratio. Non-image blobs fail
// with a decode error.
func Preview(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Dx() > PreviewMaxWidth {
		img = imaging.Resize(img, PreviewMaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
