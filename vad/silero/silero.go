// Package silero scores speech probability with the Silero VAD ONNX
// model. Frames are mono 16 kHz float32; the engine keeps the model's
// recurrent state between frames and resets it periodically so a long
// session cannot drift.
package silero

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxEnvOnce ensures the ONNX runtime environment is initialized
// exactly once for the entire process lifetime. Repeated Init/Destroy
// cycles leak ONNX internal state because the runtime is not designed
// to be torn down and re-created.
var onnxEnvOnce sync.Once

const (
	sampleRate  = 16000
	inputLength = 512
	contextSize = 64

	// modelResetInterval is how often the recurrent state is cleared
	// outside of explicit Reset calls.
	modelResetInterval = 2 * time.Second
)

// Config holds the model and runtime library locations.
type Config struct {
	OnnxPath        string `json:"onnx_path"`
	OnnxRuntimePath string `json:"onnx_runtime_path"`
}

func DefaultConfig() Config {
	return Config{
		OnnxPath:        "./external/models/silero_vad.onnx",
		OnnxRuntimePath: "./external/onnx/libonnxruntime.so",
	}
}

type Engine struct {
	mu sync.Mutex

	config Config

	// ONNX session and tensors, created once and reused per inference.
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	srTensor     *ort.Tensor[int64]
	stateTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]

	state         []float32 // Hidden state [2, 1, 128]
	context       []float32 // Last contextSize samples of the previous frame
	buffer        []float32 // Carries partial frames between calls
	fullInput     []float32 // Scratch: context + frame
	lastResetTime time.Time

	initialized bool
}

func New(config Config) *Engine {
	return &Engine{
		config:        config,
		state:         make([]float32, 2*1*128),
		context:       make([]float32, contextSize),
		fullInput:     make([]float32, contextSize+inputLength),
		lastResetTime: time.Now(),
	}
}

// Initialize loads the runtime library and builds the inference
// session.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	// The environment is intentionally never destroyed; the ONNX
	// runtime leaks internal state when torn down and re-created.
	var envErr error
	onnxEnvOnce.Do(func() {
		ort.SetSharedLibraryPath(e.config.OnnxRuntimePath)
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return fmt.Errorf("initialize ONNX environment: %w", envErr)
	}

	if err := e.createTensors(); err != nil {
		e.destroyTensors()
		return err
	}

	e.initialized = true
	return nil
}

// Probability scores one frame of mono 16 kHz samples. Partial frames
// are buffered; until a full model window is available the returned
// probability is 0.
func (e *Engine) Probability(frame []float32) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return 0, fmt.Errorf("silero engine not initialized")
	}

	if time.Since(e.lastResetTime) >= modelResetInterval {
		e.resetStateLocked()
		e.lastResetTime = time.Now()
	}

	e.buffer = append(e.buffer, frame...)
	if len(e.buffer) < inputLength {
		return 0, nil
	}

	var lastConfidence float32
	for len(e.buffer) >= inputLength {
		window := e.buffer[:inputLength]
		e.buffer = e.buffer[inputLength:]

		copy(e.fullInput[:contextSize], e.context)
		copy(e.fullInput[contextSize:], window)

		copy(e.inputTensor.GetData(), e.fullInput)
		copy(e.stateTensor.GetData(), e.state)

		if err := e.session.Run(); err != nil {
			return 0, fmt.Errorf("silero inference: %w", err)
		}

		lastConfidence = e.outputTensor.GetData()[0]
		copy(e.state, e.stateNTensor.GetData())
		copy(e.context, e.fullInput[len(e.fullInput)-contextSize:])
	}

	return lastConfidence, nil
}

// Reset clears the recurrent state and any buffered partial frame.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetStateLocked()
	e.lastResetTime = time.Now()
}

// Close releases the session and tensors but leaves the global ONNX
// runtime environment intact for reuse.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil
	}
	e.destroyTensors()
	e.initialized = false
	return nil
}

func (e *Engine) resetStateLocked() {
	for i := range e.state {
		e.state[i] = 0
	}
	for i := range e.context {
		e.context[i] = 0
	}
	e.buffer = e.buffer[:0]
}

func (e *Engine) createTensors() error {
	totalInputSize := int64(contextSize + inputLength)

	inputTensor, err := ort.NewTensor(ort.NewShape(1, totalInputSize), make([]float32, totalInputSize))
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	e.inputTensor = inputTensor

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{sampleRate})
	if err != nil {
		return fmt.Errorf("create sr tensor: %w", err)
	}
	e.srTensor = srTensor

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), e.state)
	if err != nil {
		return fmt.Errorf("create state tensor: %w", err)
	}
	e.stateTensor = stateTensor

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return fmt.Errorf("create output tensor: %w", err)
	}
	e.outputTensor = outputTensor

	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return fmt.Errorf("create stateN tensor: %w", err)
	}
	e.stateNTensor = stateNTensor

	session, err := ort.NewAdvancedSession(
		e.config.OnnxPath,
		[]string{"input", "sr", "state"},
		[]string{"output", "stateN"},
		[]ort.Value{e.inputTensor, e.srTensor, e.stateTensor},
		[]ort.Value{e.outputTensor, e.stateNTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create ONNX session: %w", err)
	}
	e.session = session
	return nil
}

func (e *Engine) destroyTensors() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.srTensor != nil {
		e.srTensor.Destroy()
		e.srTensor = nil
	}
	if e.stateTensor != nil {
		e.stateTensor.Destroy()
		e.stateTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	if e.stateNTensor != nil {
		e.stateNTensor.Destroy()
		e.stateNTensor = nil
	}
}
