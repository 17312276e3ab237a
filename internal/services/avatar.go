package services

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	// Decoders accepted for avatars.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	appErr "github.com/finsync/engine/pkg/errors"
)

const (
	AvatarMaxBytes  = 5 << 20
	avatarBox       = 200
	avatarQuality   = 80
	avatarMaxPixels = 40_000_000
)

// AvatarDataURI scales an image to fit a 200x200 box and returns it as a JPEG data URI.
func AvatarDataURI(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", appErr.Invalid("No file uploaded")
	}
	if len(raw) > AvatarMaxBytes {
		return "", appErr.Invalid("Avatar must be 5MB or smaller")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", appErr.Invalid("Only image files are allowed for avatars.")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > avatarMaxPixels {
		return "", appErr.Invalid("Image dimensions are not supported")
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", appErr.Invalid("Only image files are allowed for avatars.")
	}

	w, h := fitInside(cfg.Width, cfg.Height, avatarBox)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: avatarQuality}); err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "encode avatar")
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// fitInside scales (w, h) so the longer side equals box, keeping the aspect ratio.
func fitInside(w, h, box int) (int, int) {
	if w >= h {
		nh := h * box / w
		if nh < 1 {
			nh = 1
		}
		return box, nh
	}
	nw := w * box / h
	if nw < 1 {
		nw = 1
	}
	return nw, box
}
