package inference

import (
	"os"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov4/models/yolov4"
)

// ONNXConfig configures an ONNX Runtime-backed network.
type ONNXConfig struct {
	// Path to the exported YOLOv4 ONNX graph.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// Path to the onnxruntime shared library; empty uses the per-platform
	// default under third_party/.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Graph input name.
	Input string `json:"input" yaml:"input"`
	// Graph output names, one per scale in stride order.
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Threads parallelizing within a graph node; 0 uses the ORT default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// Threads parallelizing across graph nodes; 0 uses the ORT default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// DefaultONNXConfig returns the conventional export names for the reference
// YOLOv4 graph.
func DefaultONNXConfig(modelPath string) ONNXConfig {
	return ONNXConfig{
		ModelPath:      modelPath,
		Input:          "input",
		Outputs:        []string{"conv_sbbox", "conv_mbbox", "conv_lbbox"},
		IntraOpThreads: 4,
		InterOpThreads: 2,
	}
}

// ONNXNetwork implements Network on top of an ONNX Runtime session. The
// session owns fixed-shape input/output tensors sized from the detection
// configuration, so the class count is validated once at construction
// instead of on every frame.
type ONNXNetwork struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	det     yolov4.Config
}

// NewONNXNetwork loads the graph and binds fixed input/output tensors.
//
// Arguments:
//   - cfg: Runtime/session configuration.
//   - det: Detection configuration the graph must match (input size,
//     scales, class count).
//
// Returns:
//   - *ONNXNetwork: The ready network.
//   - error: An error if the library, graph, or shapes cannot be set up.
func NewONNXNetwork(cfg ONNXConfig, det yolov4.Config) (*ONNXNetwork, error) {
	if err := det.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Outputs) != yolov4.ScaleCount {
		return nil, errors.Errorf("onnx: want %d output names, got %d", yolov4.ScaleCount, len(cfg.Outputs))
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = SharedLibPath()
	}
	if _, err := os.Stat(libPath); os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "onnx: runtime library not found at %s", libPath)
	}
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "onnx: initializing environment")
		}
	}

	size := int64(det.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, size, size, 3))
	if err != nil {
		return nil, errors.Wrap(err, "onnx: creating input tensor")
	}

	// The raw heads come out channel-packed: [1, gh, gw, anchors*(5+classes)].
	outputs := make([]*ort.Tensor[float32], yolov4.ScaleCount)
	arbitrary := make([]ort.ArbitraryTensor, yolov4.ScaleCount)
	destroyAll := func() {
		input.Destroy()
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}
	for i := range outputs {
		gs := int64(det.GridSize(i))
		ch := int64(yolov4.AnchorsPerScale * det.Channels())
		out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, gs, gs, ch))
		if err != nil {
			destroyAll()
			return nil, errors.Wrapf(err, "onnx: creating output tensor %d", i)
		}
		outputs[i] = out
		arbitrary[i] = out
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		destroyAll()
		return nil, errors.Wrap(err, "onnx: creating session options")
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(cfg.IntraOpThreads)
	options.SetInterOpNumThreads(cfg.InterOpThreads)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.Input},
		cfg.Outputs,
		[]ort.ArbitraryTensor{input},
		arbitrary,
		options,
	)
	if err != nil {
		destroyAll()
		return nil, errors.Wrapf(err, "onnx: loading %s", cfg.ModelPath)
	}

	return &ONNXNetwork{session: session, input: input, outputs: outputs, det: det}, nil
}

// Predict runs one batch through the graph and reshapes each head into the
// [1, gh, gw, anchors, 5+classes] raw layout the decoder expects. The
// channel-packed ORT layout has the same element order, so this is a copy,
// not a shuffle.
func (n *ONNXNetwork) Predict(input *tensor.Dense) ([]*tensor.Dense, error) {
	src := input.Data().([]float32)
	dst := n.input.GetData()
	if len(src) != len(dst) {
		return nil, errors.Errorf("onnx: input has %d elements, session expects %d", len(src), len(dst))
	}
	copy(dst, src)

	if err := n.session.Run(); err != nil {
		return nil, errors.Wrap(err, "onnx: session run")
	}

	raw := make([]*tensor.Dense, yolov4.ScaleCount)
	for i, out := range n.outputs {
		gs := n.det.GridSize(i)
		data := out.GetData()
		backing := make([]float32, len(data))
		copy(backing, data)
		raw[i] = tensor.New(
			tensor.WithShape(1, gs, gs, yolov4.AnchorsPerScale, n.det.Channels()),
			tensor.WithBacking(backing),
		)
	}
	return raw, nil
}

// Close destroys the session and its bound tensors.
func (n *ONNXNetwork) Close() error {
	n.session.Destroy()
	n.input.Destroy()
	for _, o := range n.outputs {
		o.Destroy()
	}
	return nil
}
