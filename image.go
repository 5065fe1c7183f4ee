package main

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
)

const (
	MaxImageBytes     = 1 << 20 // 1MB after compression
	MaxImageDimension = 1920    // longest side in pixels
	MaxUploadBytes    = 25 << 20
)

// compressImage bounds an uploaded image to maxDim pixels on its longest
// side and re-encodes it as JPEG under maxBytes, stepping quality down until
// it fits. Anything that does not decode as an image is rejected.
func compressImage(data []byte, maxBytes int64, maxDim uint) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a decodable image: %v", ErrValidation, err)
	}

	bounded := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)

	for quality := 85; quality >= 25; quality -= 15 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, bounded, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode %s as jpeg: %w", format, err)
		}

		if int64(buf.Len()) <= maxBytes {
			return buf.Bytes(), nil
		}
	}

	return nil, fmt.Errorf("%w: image does not fit %d bytes at minimum quality", ErrValidation, maxBytes)
}
