package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // decoder registration
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp" // decoder registration
)

// JPEGQuality of every re-encoded photo
const JPEGQuality = 92

// MaxPixels caps width*height of any image decoded here
const MaxPixels = 40_000_000

// Alignment canvas, a 4:5 portrait matching the upload frame
const (
	alignWidth  = 800
	alignHeight = 1000
)

// CropRect returns the largest centered rectangle of a srcW x srcH image that
// has the aspect ratio dstW:dstH. Cross-multiplication keeps it exact.
func CropRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	switch {
	case srcW*dstH > dstW*srcH: // source wider than target
		w := int(math.Round(float64(srcH) * float64(dstW) / float64(dstH)))
		x0 := (srcW - w) / 2
		return image.Rect(x0, 0, x0+w, srcH)
	case srcW*dstH < dstW*srcH: // source taller than target
		h := int(math.Round(float64(srcW) * float64(dstH) / float64(dstW)))
		y0 := (srcH - h) / 2
		return image.Rect(0, y0, srcW, y0+h)
	default:
		return image.Rect(0, 0, srcW, srcH)
	}
}

// Fit center-crops img to the target aspect ratio and scales it to w x h.
// An image that already has the target size is returned as is.
func Fit(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	crop := CropRect(b.Dx(), b.Dy(), w, h).Add(b.Min)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}

// CheckImage reads only the image header and rejects unknown formats and
// dimensions beyond MaxPixels
func CheckImage(src Blob) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src.Data))
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return image.Config{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrBadImage, cfg.Width, cfg.Height, MaxPixels)
	}
	return cfg, nil
}

func decode(src Blob) (image.Image, error) {
	if _, err := CheckImage(src); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return img, nil
}

// Extension is the file extension for an image MIME type, ".jpg" when unknown
func Extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

func encodeJPEG(img image.Image) (Blob, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Blob{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Blob{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}

// Resize applies Fit to encoded image data. Input already at w x h comes back
// byte for byte.
func Resize(src Blob, w, h int) (Blob, error) {
	cfg, err := CheckImage(src)
	if err != nil {
		return Blob{}, err
	}
	if cfg.Width == w && cfg.Height == h {
		return src, nil
	}
	img, err := decode(src)
	if err != nil {
		return Blob{}, err
	}
	return encodeJPEG(Fit(img, w, h))
}

// alignTransform maps source pixels onto the alignment canvas: cover-scale the
// photo, zoom so the face fills about 60% of the height, rotate by the roll
// angle and pan the face center to the canvas center
func alignTransform(srcW, srcH int, fa FaceAnalysis) f64.Aff3 {
	box := fa.FaceBox
	cx := (box.XMin + box.XMax) / 2000
	cy := (box.YMin + box.YMax) / 2000
	zoom := 0.6 / ((box.YMax - box.YMin) / 1000)
	zoom = math.Min(math.Max(zoom, 1), 3)

	cover := math.Max(float64(alignWidth)/float64(srcW), float64(alignHeight)/float64(srcH))
	k := zoom * cover
	rad := fa.RollAngle * math.Pi / 180
	sin, cos := math.Sincos(rad)

	tx := alignWidth/2 + (0.5-cx)*alignWidth*zoom
	ty := alignHeight/2 + (0.5-cy)*alignHeight*zoom
	hw, hh := float64(srcW)/2, float64(srcH)/2
	return f64.Aff3{
		k * cos, -k * sin, tx - k*cos*hw + k*sin*hh,
		k * sin, k * cos, ty - k*sin*hw - k*cos*hh,
	}
}

// Align crops and straightens a photo around the detected face on a white
// 4:5 canvas. Without a face box the photo is returned unchanged.
func Align(src Blob, fa FaceAnalysis) (Blob, error) {
	if fa.FaceBox == nil {
		return src, nil
	}
	img, err := decode(src)
	if err != nil {
		return Blob{}, err
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, alignWidth, alignHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	s2d := alignTransform(b.Dx(), b.Dy(), fa)
	// Transform works in the source's own coordinate space
	s2d[2] -= s2d[0]*float64(b.Min.X) + s2d[1]*float64(b.Min.Y)
	s2d[5] -= s2d[3]*float64(b.Min.X) + s2d[4]*float64(b.Min.Y)
	draw.BiLinear.Transform(dst, s2d, img, b, draw.Over, nil)
	return encodeJPEG(dst)
}
