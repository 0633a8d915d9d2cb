package models

import "errors"

// Error taxonomy of the ingest and prediction path. Callers wrap these with
// fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrTransport: upstream unreachable or non-success status.
	ErrTransport = errors.New("transport failure")
	// ErrDecode: payload could not be decoded into records.
	ErrDecode = errors.New("decode failure")
	// ErrShapeMismatch: assembled tensor does not fit the model input.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrScalerFeatureMismatch: tensor feature count differs from the fitted scaler.
	ErrScalerFeatureMismatch = errors.New("scaler feature mismatch")
	// ErrModelInference: the model call failed.
	ErrModelInference = errors.New("model inference failure")
	// ErrInsufficientData: no aligned rows are available yet.
	ErrInsufficientData = errors.New("no aligned data yet")
	// ErrPredictionDisabled: scaler or model could not be loaded at start.
	ErrPredictionDisabled = errors.New("prediction disabled")
)
