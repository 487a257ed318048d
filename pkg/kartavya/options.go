package kartavya

import "path/filepath"

type options struct {
	modelDir   string
	modelPath  string
	labelsPath string
	model      Model
	inputSize  int
	topK       int
	noSoftmax  bool
}

// Option configures a Kartavya instance.
type Option func(*options)

// WithModelDir sets the directory containing model files.
// Expects: mobilenet_v2.onnx, imagenet_labels.txt and the ONNX Runtime
// shared library libonnxruntime.so.
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithModelPaths sets explicit paths for the model and its labels file.
func WithModelPaths(model, labels string) Option {
	return func(o *options) {
		o.modelPath = model
		o.labelsPath = labels
	}
}

// WithModel uses m instead of loading an ONNX model. Model files are
// ignored when this is set.
func WithModel(m Model) Option {
	return func(o *options) {
		o.model = m
	}
}

// WithInputSize sets the square input edge used when the model leaves it
// dynamic. Default: 224.
func WithInputSize(n int) Option {
	return func(o *options) {
		o.inputSize = n
	}
}

// WithTopK sets how many predictions the model returns. Default: 5.
func WithTopK(k int) Option {
	return func(o *options) {
		o.topK = k
	}
}

// WithoutSoftmax is for models whose output is already a probability
// distribution.
func WithoutSoftmax() Option {
	return func(o *options) {
		o.noSoftmax = true
	}
}

func defaultOptions() options {
	return options{
		inputSize: 224,
		topK:      5,
	}
}

// resolvePaths determines the model and labels file paths from the
// configured options. Explicit paths take precedence over modelDir.
func resolvePaths(o options) (model, labels string) {
	if o.modelPath != "" {
		return o.modelPath, o.labelsPath
	}
	dir := o.modelDir
	if dir == "" {
		dir = "models"
	}
	return filepath.Join(dir, "mobilenet_v2.onnx"),
		filepath.Join(dir, "imagenet_labels.txt")
}
