package vision

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/kartavya/internal/model"
)

// ortEnv manages global ONNX Runtime initialization. The runtime library
// itself is process-wide; sessions are not.
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// Options tune the ONNX image classifier.
type Options struct {
	InputSize    int  // square input edge in pixels, used when the model leaves it dynamic
	TopK         int  // number of predictions returned
	ApplySoftmax bool // false when the model already outputs probabilities
	Threads      int  // intra-op threads
}

// DefaultOptions matches a MobileNet-style ImageNet classifier.
func DefaultOptions() Options {
	return Options{InputSize: 224, TopK: 5, ApplySoftmax: true, Threads: 4}
}

// ONNXModel classifies images with an ImageNet-style ONNX model: one NCHW
// float32 image input and one [batch, classes] output.
type ONNXModel struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	size       int
	classes    int64
	labels     []string
	opts       Options
}

// NewONNX loads the model and its labels file. The ONNX Runtime shared
// library is expected next to the model as libonnxruntime.so.
func NewONNX(modelPath, labelsPath string, opts Options) (*ONNXModel, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = DefaultOptions().InputSize
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.Threads <= 0 {
		opts.Threads = DefaultOptions().Threads
	}

	labels, err := loadLabels(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}

	libPath := filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("vision: failed to initialize onnx runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to read model info: %w", err)
	}
	inputName, size, err := validateInput(inputs, opts.InputSize)
	if err != nil {
		return nil, err
	}
	outputName, classes, err := validateOutput(outputs)
	if err != nil {
		return nil, err
	}
	if int64(len(labels)) != classes {
		return nil, fmt.Errorf("vision: model has %d classes but labels file has %d entries", classes, len(labels))
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()
	sessOpts.SetIntraOpNumThreads(opts.Threads)
	sessOpts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputName}, []string{outputName}, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create session: %w", err)
	}

	return &ONNXModel{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
		size:       size,
		classes:    classes,
		labels:     labels,
		opts:       opts,
	}, nil
}

// validateInput checks for a single [N, 3, H, W] input and resolves the
// square edge size. Dynamic spatial dims fall back to fallbackSize.
func validateInput(inputs []ort.InputOutputInfo, fallbackSize int) (string, int, error) {
	if len(inputs) != 1 {
		return "", 0, fmt.Errorf("vision: expected 1 model input, got %d", len(inputs))
	}
	dims := inputs[0].Dimensions
	if len(dims) != 4 {
		return "", 0, fmt.Errorf("vision: expected 4D image input, got %v", dims)
	}
	if dims[1] != 3 {
		return "", 0, fmt.Errorf("vision: expected NCHW input with 3 channels, got %v", dims)
	}
	h, w := dims[2], dims[3]
	if h > 0 && w > 0 && h != w {
		return "", 0, fmt.Errorf("vision: non-square input %dx%d is not supported", h, w)
	}
	size := fallbackSize
	if h > 0 {
		size = int(h)
	}
	return inputs[0].Name, size, nil
}

// validateOutput expects a [N, classes] output tensor.
func validateOutput(outputs []ort.InputOutputInfo) (string, int64, error) {
	if len(outputs) == 0 {
		return "", 0, fmt.Errorf("vision: model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 2 || dims[1] <= 0 {
		return "", 0, fmt.Errorf("vision: expected [batch, classes] output, got %v", dims)
	}
	return outputs[0].Name, dims[1], nil
}

// Predict decodes the image, runs inference, and returns the top-K labels.
func (m *ONNXModel) Predict(ctx context.Context, image []byte) ([]model.Prediction, error) {
	img, err := decodeImage(image)
	if err != nil {
		return nil, err
	}
	input := toTensor(img, m.size)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logits, err := m.infer(input)
	if err != nil {
		return nil, err
	}

	var probs []float64
	if m.opts.ApplySoftmax {
		probs = softmax(logits)
	} else {
		probs = make([]float64, len(logits))
		for i, v := range logits {
			probs[i] = float64(v)
		}
	}
	return topK(probs, m.labels, m.opts.TopK), nil
}

// infer runs a single-image inference call and returns the raw class scores.
func (m *ONNXModel) infer(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, fmt.Errorf("vision: model is closed")
	}

	size := int64(m.size)
	tIn, err := ort.NewTensor(ort.NewShape(1, 3, size, size), input)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, m.classes))
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := m.session.Run([]ort.Value{tIn}, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("vision: inference failed: %w", err)
	}

	// Copy data out before the tensor is destroyed.
	src := tOut.GetData()
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

// Labels returns the class labels in model output order.
func (m *ONNXModel) Labels() []string {
	return m.labels
}

// Close releases the ONNX session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
