package upload

import (
	"bytes"
	"image"

	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding

	_ "golang.org/x/image/webp" // register WebP decoding
)

// ProbeDimensions decodes just enough of an image to learn its size.
// Best-effort: unknown formats report ok=false and the caller falls back to
// 1x1, matching how thumbnails degrade when the probe fails.
func ProbeDimensions(content []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
