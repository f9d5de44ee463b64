package form

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/fileutil"
)

// MaxImageDimension is the largest width or height, in pixels, embedded as
// is. Larger images are downsampled first.
const MaxImageDimension = 2000

// Image types understood by the PDF writer.
const (
	ImageJPEG = "JPG"
	ImagePNG  = "PNG"
)

// Image is an image file loaded and prepared for embedding.
type Image struct {
	Path   string
	Type   string // ImageJPEG or ImagePNG
	Width  int    // pixels
	Height int
	data   []byte
}

// LoadImage reads path and prepares it for embedding. The name must end in
// .jpg, .jpeg or .png and the content must be JPEG or PNG; the content
// decides which of the two is embedded. Images larger than MaxImageDimension are downsampled, and PNG variants the
// PDF writer cannot embed directly (16-bit, interlaced) are re-encoded.
func LoadImage(path string) (*Image, error) {
	if !fileutil.HasImageExt(path) {
		return nil, fmt.Errorf("%w: %s", proposalgen.ErrUnsupportedImageFormat, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", proposalgen.ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("form: reading image %s: %w", path, err)
	}

	img := &Image{Path: path, data: data}
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		img.Type = ImageJPEG
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		img.Type = ImagePNG
	default:
		return nil, fmt.Errorf("%w: %s", proposalgen.ErrUnsupportedImageFormat, filepath.Base(path))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", proposalgen.ErrUnsupportedImageFormat, filepath.Base(path), err)
	}
	img.Width, img.Height = cfg.Width, cfg.Height

	if img.Width > MaxImageDimension || img.Height > MaxImageDimension || needsReencode(img) {
		if err := img.normalize(); err != nil {
			return nil, fmt.Errorf("form: preparing image %s: %w", path, err)
		}
	}
	return img, nil
}

// needsReencode reports PNG features the PDF writer rejects: 16-bit samples
// and Adam7 interlacing. Both are read from the IHDR chunk.
func needsReencode(img *Image) bool {
	if img.Type != ImagePNG || len(img.data) < 29 {
		return false
	}
	if string(img.data[12:16]) != "IHDR" {
		return false
	}
	bitDepth := img.data[24]
	interlace := img.data[28]
	return bitDepth == 16 || interlace != 0
}

// normalize decodes the image, downsamples it to fit MaxImageDimension and
// re-encodes it as 8-bit in its original format.
func (img *Image) normalize() error {
	src, _, err := image.Decode(bytes.NewReader(img.data))
	if err != nil {
		return err
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w > MaxImageDimension || h > MaxImageDimension {
		scale := float64(MaxImageDimension) / float64(max(w, h))
		w = max(1, int(math.Round(float64(w)*scale)))
		h = max(1, int(math.Round(float64(h)*scale)))
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	var buf bytes.Buffer
	switch img.Type {
	case ImageJPEG:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return err
	}
	img.data = buf.Bytes()
	img.Width, img.Height = w, h
	return nil
}

// Fit scales an iw x ih image into the box at (x, y) with size w x h,
// preserving the aspect ratio and centering the result. An image that is
// relatively wider than the box fills its width, otherwise its height.
func Fit(iw, ih, x, y, w, h float64) (fx, fy, fw, fh float64) {
	if iw <= 0 || ih <= 0 || w <= 0 || h <= 0 {
		return x, y, w, h
	}
	if iw/ih > w/h {
		fw = w
		fh = w * ih / iw
	} else {
		fh = h
		fw = h * iw / ih
	}
	fx = x + (w-fw)/2
	fy = y + (h-fh)/2
	return fx, fy, fw, fh
}
