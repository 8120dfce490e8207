// Package inference - the network boundary: opaque raw-output callables and
// the input preparation that feeds them.
package inference

import "gorgonia.org/tensor"

// Network is the trainable feature extractor seen from the detection core:
// an opaque callable from a preprocessed input batch to the raw
// (pre-activation) output tensors, one per detection scale in stride order.
// Layer construction, weight loading, and gradients are the implementation's
// business.
type Network interface {
	// Predict maps an input batch [batch, size, size, 3] to the raw
	// per-scale outputs, each [batch, gh, gw, anchors, 5+classes].
	Predict(input *tensor.Dense) ([]*tensor.Dense, error)

	// Close releases any native resources backing the network.
	Close() error
}
