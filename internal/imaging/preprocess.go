// Package imaging turns uploaded image bytes into the NHWC float32 tensor the classifier expects.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/nfnt/resize"

	"github.com/kailas-cloud/plantclf/internal/domain"
)

// Mode selects the channel-wise normalization applied after resizing.
// Names follow the Keras preprocess_input families.
type Mode string

const (
	// ModeNone keeps raw 0..255 values (EfficientNet rescales inside the network).
	ModeNone Mode = "none"
	// ModeTF scales to [-1, 1].
	ModeTF Mode = "tf"
	// ModeTorch scales to [0, 1] and standardizes with ImageNet mean/std.
	ModeTorch Mode = "torch"
	// ModeCaffe converts RGB to BGR and subtracts the ImageNet BGR mean.
	ModeCaffe Mode = "caffe"
)

var (
	torchMean = [3]float32{0.485, 0.456, 0.406}
	torchStd  = [3]float32{0.229, 0.224, 0.225}
	caffeMean = [3]float32{103.939, 116.779, 123.68} // BGR
)

// ParseMode validates a preprocessing mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNone, ModeTF, ModeTorch, ModeCaffe:
		return m, nil
	default:
		return "", fmt.Errorf("unknown preprocessing mode %q", s)
	}
}

// Preprocessor decodes, resizes and normalizes images. Stateless and safe for concurrent use.
type Preprocessor struct {
	size      int
	mode      Mode
	maxPixels int64
}

// New creates a Preprocessor for the given input layout.
func New(cfg domain.InputConfig) (*Preprocessor, error) {
	if cfg.ImageSize <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %d", cfg.ImageSize)
	}
	if cfg.Channels != 3 {
		return nil, fmt.Errorf("only 3-channel RGB input is supported, got %d", cfg.Channels)
	}
	mode, err := ParseMode(cfg.Preprocessing)
	if err != nil {
		return nil, err
	}
	if cfg.MaxPixels < 0 {
		return nil, fmt.Errorf("max pixels must not be negative, got %d", cfg.MaxPixels)
	}
	maxPixels := int64(cfg.MaxPixels)
	if maxPixels == 0 {
		maxPixels = domain.DefaultMaxPixels
	}
	return &Preprocessor{size: cfg.ImageSize, mode: mode, maxPixels: maxPixels}, nil
}

// Prepare decodes data and returns a tensor of shape (1, size, size, 3) flattened row-major.
func (p *Preprocessor) Prepare(data []byte) ([]float32, error) {
	img, err := Decode(data, p.maxPixels)
	if err != nil {
		return nil, err
	}
	return p.Tensor(img), nil
}

// Decode interprets data as a PNG or JPEG image. The header is read first and
// images whose declared area exceeds maxPixels are rejected before decoding.
func Decode(data []byte, maxPixels int64) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot identify image file: empty upload")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("cannot identify image file: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if area := int64(cfg.Width) * int64(cfg.Height); area > maxPixels {
		return nil, fmt.Errorf("image size (%dx%d = %d pixels) exceeds limit of %d pixels",
			cfg.Width, cfg.Height, area, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}
	return img, nil
}

// Tensor resizes img with nearest-neighbour sampling and lays it out as normalized NHWC float32.
// Alpha is dropped, not composited: transparent pixels keep their stored RGB.
func (p *Preprocessor) Tensor(img image.Image) []float32 {
	var resized image.Image = opaqueRGB(img)
	if b := resized.Bounds(); b.Dx() != p.size || b.Dy() != p.size {
		resized = resize.Resize(uint(p.size), uint(p.size), resized, resize.NearestNeighbor)
	}

	bounds := resized.Bounds()
	out := make([]float32, p.size*p.size*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Min.Y+p.size; y++ {
		for x := bounds.Min.X; x < bounds.Min.X+p.size; x++ {
			c := color.RGBAModel.Convert(resized.At(x, y)).(color.RGBA)
			p.normalize(out[i:i+3], float32(c.R), float32(c.G), float32(c.B))
			i += 3
		}
	}
	return out
}

// opaqueRGB copies img into a zero-origin RGBA with alpha forced to 255.
// The resizer works on premultiplied values, so straight RGB has to be fixed before it runs.
func opaqueRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return dst
}

func (p *Preprocessor) normalize(dst []float32, r, g, b float32) {
	switch p.mode {
	case ModeTF:
		dst[0], dst[1], dst[2] = r/127.5-1, g/127.5-1, b/127.5-1
	case ModeTorch:
		dst[0] = (r/255 - torchMean[0]) / torchStd[0]
		dst[1] = (g/255 - torchMean[1]) / torchStd[1]
		dst[2] = (b/255 - torchMean[2]) / torchStd[2]
	case ModeCaffe:
		dst[0], dst[1], dst[2] = b-caffeMean[0], g-caffeMean[1], r-caffeMean[2]
	default:
		dst[0], dst[1], dst[2] = r, g, b
	}
}
