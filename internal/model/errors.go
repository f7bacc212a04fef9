package model

import (
	"errors"
	"fmt"
)

// ErrNotTrained is returned by Predict and Save when no model has been
// trained or loaded yet.
var ErrNotTrained = errors.New("model: not trained, call Train or Load first")

// EmptyDatasetError reports a training or split attempt that produced an
// empty partition. It carries the offending partition sizes so the caller can
// see which side collapsed.
type EmptyDatasetError struct {
	Train int
	Val   int
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("model: empty dataset partition (train=%d, val=%d)", e.Train, e.Val)
}
