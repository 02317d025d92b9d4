package predict

// Preprocessor turns raw upload bytes into the classifier's input tensor.
type Preprocessor interface {
	Prepare(data []byte) ([]float32, error)
}
