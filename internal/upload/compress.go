// internal/upload/compress.go
package upload

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// compress shrinks content to at most cfg.MaxWidth pixels wide and
// re-encodes it as JPEG at cfg.Quality. It only runs when the image is wider
// than the limit or larger than cfg.CompressAbove. The original bytes come
// back, with ok false, whenever compression fails or would not help.
func compress(content []byte, cfg Config) (out []byte, ok bool, err error) {
	imgCfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return content, false, err
	}
	if imgCfg.Width <= cfg.MaxWidth && int64(len(content)) <= cfg.CompressAbove {
		return content, false, nil
	}

	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return content, false, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > cfg.MaxWidth {
		h = h * cfg.MaxWidth / w
		w = cfg.MaxWidth
	}
	if h < 1 {
		h = 1
	}

	// JPEG has no alpha; flatten onto white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: cfg.Quality}); err != nil {
		return content, false, err
	}
	if buf.Len() >= len(content) {
		return content, false, nil
	}
	return buf.Bytes(), true, nil
}
