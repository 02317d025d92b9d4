package domain

import "strings"

// Image extensions accepted by the prediction endpoint (compared case-insensitively).
var AllowedExtensions = []string{".png", ".jpg", ".jpeg"}

// IsAllowedFilename reports whether the declared filename ends in an accepted image extension.
// Only the name is checked; content is validated by the decoder.
func IsAllowedFilename(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range AllowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// DefaultMaxPixels caps decoded image area before any pixel buffer is allocated.
const DefaultMaxPixels = 178956970

// InputConfig describes the tensor the classifier expects.
type InputConfig struct {
	ImageSize     int
	Channels      int
	Preprocessing string
	// MaxPixels bounds width*height of an upload; zero means DefaultMaxPixels.
	MaxPixels int
}

// DefaultInputConfig returns the layout for EfficientNet-family Keras exports: 224x224 RGB, no extra scaling.
func DefaultInputConfig() InputConfig {
	return InputConfig{
		ImageSize:     224,
		Channels:      3,
		Preprocessing: "none",
		MaxPixels:     DefaultMaxPixels,
	}
}

// Shape returns the NHWC tensor shape with a batch dimension of 1.
func (c InputConfig) Shape() []int64 {
	return []int64{1, int64(c.ImageSize), int64(c.ImageSize), int64(c.Channels)}
}

// Len returns the number of float32 elements in one input tensor.
func (c InputConfig) Len() int {
	return c.ImageSize * c.ImageSize * c.Channels
}
