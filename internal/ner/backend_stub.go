//go:build !onnx
// +build !onnx

package ner

import "go.uber.org/zap"

// Stub used when the 'onnx' build tag is not set; the factory maps the nil
// return to the Unavailable provider.
func newBackendProvider(cfg Config, logger *zap.Logger) Provider {
	return nil
}
