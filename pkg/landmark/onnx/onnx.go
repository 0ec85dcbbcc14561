// Package onnx provides landmark detectors backed by ONNX Runtime.
//
// Each detector owns one DynamicAdvancedSession created from a landmark model
// exported to ONNX (for example the MediaPipe hand, face-mesh and pose
// landmark graphs). The runtime shared library is initialised once per
// process. Any failure while locating the library or loading the model yields
// a [landmark.Unavailable] detector and a logged warning instead of an error,
// so a missing model only disables the scores that depend on it.
//
// Usage:
//
//	det := onnx.New(landmark.Hand, "/models/hand_landmarker.onnx",
//	    onnx.DefaultOptions(landmark.Hand))
//	defer det.Close()
//	set, ok := det.Detect(ctx, frame)
package onnx

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MrWong99/podium/pkg/landmark"
)

// Options configures the tensor contract of a landmark model.
type Options struct {
	// RuntimeLibrary is the path to the onnxruntime shared library. When empty
	// the binding's platform default is used. Only the first detector created
	// in a process decides the library.
	RuntimeLibrary string

	// InputName is the image input tensor name. When empty the model's first
	// input is used.
	InputName string

	// LandmarkOutput is the landmark tensor name. When empty the model's first
	// output is used.
	LandmarkOutput string

	// ScoreOutput is an optional presence-score tensor name. When empty every
	// non-empty landmark tensor counts as present.
	ScoreOutput string

	// InputSize is the side length of the square model input in pixels.
	InputSize int

	// Layout is the input tensor layout.
	Layout Layout

	// Landmarks is the number of keypoints the model emits.
	Landmarks int

	// Stride is the number of floats per keypoint (x, y, z, and optionally
	// visibility and presence).
	Stride int

	// PixelCoordinates reports that the model emits coordinates in input
	// pixels rather than normalised [0,1] units.
	PixelCoordinates bool

	// MinPresence is the score below which a frame is treated as a miss.
	MinPresence float64

	// Threads caps intra-op parallelism. Zero lets the runtime decide.
	Threads int
}

// DefaultOptions returns the tensor contract of the MediaPipe landmark graphs
// for m.
func DefaultOptions(m landmark.Modality) Options {
	o := Options{
		Layout:           NHWC,
		Stride:           3,
		PixelCoordinates: true,
		MinPresence:      0.5,
	}
	switch m {
	case landmark.Hand:
		o.InputSize, o.Landmarks = 224, 21
	case landmark.Face:
		o.InputSize, o.Landmarks = 192, 468
	case landmark.Pose:
		o.InputSize, o.Landmarks, o.Stride = 256, 33, 5
	}
	return o
}

var (
	envOnce sync.Once
	envErr  error
)

// initRuntime initialises the ONNX Runtime environment exactly once.
func initRuntime(library string) error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Detector implements landmark.Detector with an ONNX Runtime session.
// DynamicAdvancedSession.Run is reentrant, so one Detector may serve several
// concurrent analyses.
type Detector struct {
	modality landmark.Modality
	opts     Options
	session  *ort.DynamicAdvancedSession
	outputs  int

	closeOnce sync.Once
	closeErr  error
}

var _ landmark.Detector = (*Detector)(nil)

// New loads the model at modelPath. It never fails: when modelPath is empty or
// the model cannot be loaded it returns a [landmark.Unavailable] detector.
func New(m landmark.Modality, modelPath string, opts Options) landmark.Detector {
	if modelPath == "" {
		slog.Warn("landmark model not found, detector disabled", "modality", m)
		return landmark.Unavailable(m, "model not found")
	}
	d, err := load(m, modelPath, opts)
	if err != nil {
		slog.Warn("landmark model failed to load, detector disabled",
			"modality", m, "path", modelPath, "err", err)
		return landmark.Unavailable(m, err.Error())
	}
	slog.Info("landmark detector loaded", "modality", m, "path", modelPath)
	return d
}

func load(m landmark.Modality, modelPath string, opts Options) (*Detector, error) {
	def := DefaultOptions(m)
	if opts.InputSize <= 0 {
		opts.InputSize = def.InputSize
	}
	if opts.Layout == "" {
		opts.Layout = def.Layout
	}
	if opts.Landmarks <= 0 {
		opts.Landmarks = def.Landmarks
	}
	if opts.Stride <= 0 {
		opts.Stride = def.Stride
	}
	if opts.Stride < 2 {
		return nil, fmt.Errorf("onnx: stride %d cannot hold x and y", opts.Stride)
	}

	if err := initRuntime(opts.RuntimeLibrary); err != nil {
		return nil, fmt.Errorf("onnx: initialise runtime: %w", err)
	}

	if opts.InputName == "" || opts.LandmarkOutput == "" {
		ins, outs, err := ort.GetInputOutputInfo(modelPath)
		if err != nil {
			return nil, fmt.Errorf("onnx: inspect %q: %w", modelPath, err)
		}
		if len(ins) == 0 || len(outs) == 0 {
			return nil, fmt.Errorf("onnx: %q has no inputs or outputs", modelPath)
		}
		if opts.InputName == "" {
			opts.InputName = ins[0].Name
		}
		if opts.LandmarkOutput == "" {
			opts.LandmarkOutput = outs[0].Name
		}
	}

	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer so.Destroy()
	if err := so.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("onnx: graph optimisation: %w", err)
	}
	if opts.Threads > 0 {
		if err := so.SetIntraOpNumThreads(opts.Threads); err != nil {
			return nil, fmt.Errorf("onnx: thread count: %w", err)
		}
	}

	outputNames := []string{opts.LandmarkOutput}
	if opts.ScoreOutput != "" {
		outputNames = append(outputNames, opts.ScoreOutput)
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{opts.InputName}, outputNames, so)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &Detector{
		modality: m,
		opts:     opts,
		session:  session,
		outputs:  len(outputNames),
	}, nil
}

// Modality returns the tracked body part.
func (d *Detector) Modality() landmark.Modality { return d.modality }

// Available always reports true; unloadable models never produce a Detector.
func (d *Detector) Available() bool { return true }

// Detect runs the model on img. Inference errors are logged at debug level and
// reported as a per-frame miss.
func (d *Detector) Detect(ctx context.Context, img image.Image) (landmark.Set, bool) {
	if img == nil || ctx.Err() != nil {
		return landmark.Set{}, false
	}

	input, err := ort.NewTensor(ort.NewShape(d.opts.Layout.shape(d.opts.InputSize)...),
		pack(img, d.opts.InputSize, d.opts.Layout))
	if err != nil {
		slog.Debug("onnx: input tensor", "modality", d.modality, "err", err)
		return landmark.Set{}, false
	}
	defer input.Destroy()

	// Nil outputs are allocated by the runtime and owned by the caller.
	outputs := make([]ort.Value, d.outputs)
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		slog.Debug("onnx: inference failed", "modality", d.modality, "err", err)
		return landmark.Set{}, false
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	coords, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		slog.Debug("onnx: landmark output is not float32", "modality", d.modality)
		return landmark.Set{}, false
	}

	score := 1.0
	if d.outputs > 1 {
		st, ok := outputs[1].(*ort.Tensor[float32])
		if !ok || len(st.GetData()) == 0 {
			return landmark.Set{}, false
		}
		score = presence(float64(st.GetData()[0]))
		if score < d.opts.MinPresence {
			return landmark.Set{}, false
		}
	}

	set := decode(coords.GetData(), d.opts)
	if set.Empty() {
		return landmark.Set{}, false
	}
	set.Modality = d.modality
	set.Score = score
	return set, true
}

// Close destroys the session. Calling Close more than once is safe.
func (d *Detector) Close() error {
	d.closeOnce.Do(func() {
		if d.session != nil {
			d.closeErr = d.session.Destroy()
		}
	})
	return d.closeErr
}

// decode converts a flat landmark tensor into normalised points, preserving
// model indices. A tensor containing NaN is treated as a miss.
func decode(data []float32, opts Options) landmark.Set {
	n := min(opts.Landmarks, len(data)/opts.Stride)
	if n <= 0 {
		return landmark.Set{}
	}
	scale := 1.0
	if opts.PixelCoordinates && opts.InputSize > 0 {
		scale = float64(opts.InputSize)
	}
	pts := make([]landmark.Point, 0, n)
	for i := range n {
		base := i * opts.Stride
		p := landmark.Point{
			X: float64(data[base]) / scale,
			Y: float64(data[base+1]) / scale,
		}
		if opts.Stride > 2 {
			p.Z = float64(data[base+2]) / scale
		}
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return landmark.Set{}
		}
		pts = append(pts, p)
	}
	return landmark.Set{Points: pts}
}

// presence maps a raw score to [0,1]. Models that emit logits get a sigmoid.
func presence(raw float64) float64 {
	if raw >= 0 && raw <= 1 {
		return raw
	}
	return 1 / (1 + math.Exp(-raw))
}
