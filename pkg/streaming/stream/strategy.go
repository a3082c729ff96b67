package stream

import (
	"math"

	gferrors "github.com/mukulmishra18/wstream/pkg/common/errors"
	"github.com/mukulmishra18/wstream/pkg/common/validation"
)

// Strategy controls when a Stream signals backpressure. HighWaterMark is
// the threshold at or above which the queue's total size is considered "full
// enough". Size computes a chunk's contribution to that total; when nil,
// every chunk counts as 1 (so HighWaterMark becomes a chunk count).
type Strategy struct {
	HighWaterMark float64
	Size          func(chunk any) (float64, error)
}

func (s Strategy) validate() error {
	if math.IsNaN(s.HighWaterMark) || math.IsInf(s.HighWaterMark, 0) {
		return ErrInvalidStrategy
	}
	if err := validation.ValidateNonNegative("wstream", "HighWaterMark", s.HighWaterMark); err != nil {
		context := "invalid strategy"
		if gferrors.IsValidationError(err) {
			context = "strategy failed field validation"
		}
		return gferrors.NewOperationError("wstream", "New", err).WithContext(context)
	}
	return nil
}

func (s Strategy) sizeOf(chunk any) (float64, error) {
	if s.Size == nil {
		return 1, nil
	}
	return s.Size(chunk)
}
