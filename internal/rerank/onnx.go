package rerank

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"

	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
)

// OnnxSession runs the exported cross-encoder through ONNX Runtime. The input
// and output tensors are allocated once at batch capacity and reused for
// every Run call; short final chunks are zero-padded.
type OnnxSession struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]
	batchSize     int
	seqLen        int
	outputDim     int
}

// NewOnnxSession loads the model and pre-allocates the batch tensors. Any
// failure is ErrModelLoadFailed; the caller keeps Boolean retrieval alive by
// running the service without a session.
func NewOnnxSession(modelPath string, batchSize, seqLen, outputDim int) (*OnnxSession, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrModelLoadFailed, pkgerrors.ExitMissingInput,
				"initializing onnxruntime: %v", err)
		}
	}

	shape := ort.NewShape(int64(batchSize), int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrModelLoadFailed, pkgerrors.ExitMissingInput,
			"allocating input tensor: %v", err)
	}
	attentionMask, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		inputIDs.Destroy()
		return nil, pkgerrors.Newf(pkgerrors.ErrModelLoadFailed, pkgerrors.ExitMissingInput,
			"allocating attention tensor: %v", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batchSize), int64(outputDim)))
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		return nil, pkgerrors.Newf(pkgerrors.ErrModelLoadFailed, pkgerrors.ExitMissingInput,
			"allocating output tensor: %v", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attentionMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		output.Destroy()
		return nil, pkgerrors.Newf(pkgerrors.ErrModelLoadFailed, pkgerrors.ExitMissingInput,
			"loading model %s: %v", modelPath, err)
	}

	slog.Default().With("component", "onnx-session").Info("cross-encoder loaded",
		"model", modelPath,
		"batch_size", batchSize,
		"seq_len", seqLen,
	)
	return &OnnxSession{
		session:       session,
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		output:        output,
		batchSize:     batchSize,
		seqLen:        seqLen,
		outputDim:     outputDim,
	}, nil
}

// Run copies the encoded batch into the session tensors, executes the model,
// and returns the first batch*outputDim logits.
func (s *OnnxSession) Run(inputIDs, attentionMask []int64, batch int) ([]float32, error) {
	if batch > s.batchSize {
		return nil, fmt.Errorf("batch %d exceeds session capacity %d", batch, s.batchSize)
	}
	n := batch * s.seqLen
	idsData := s.inputIDs.GetData()
	maskData := s.attentionMask.GetData()
	copy(idsData, inputIDs[:n])
	copy(maskData, attentionMask[:n])
	for i := n; i < len(idsData); i++ {
		idsData[i] = 0
		maskData[i] = 0
	}

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}

	logits := make([]float32, batch*s.outputDim)
	copy(logits, s.output.GetData())
	return logits, nil
}

// OutputDim returns the width of the model's output rows.
func (s *OnnxSession) OutputDim() int {
	return s.outputDim
}

// Close destroys the session and its tensors.
func (s *OnnxSession) Close() error {
	s.session.Destroy()
	s.inputIDs.Destroy()
	s.attentionMask.Destroy()
	s.output.Destroy()
	return nil
}

var _ Session = (*OnnxSession)(nil)
