package ner

import "go.uber.org/zap"

// New returns the configured provider. Model loading is expensive, so callers
// construct one provider per process and share it; loaded models are read-only
// and safe for concurrent Detect calls. Every failure path degrades to
// Unavailable; a missing model never fails the caller.
func New(cfg Config, logger *zap.Logger) Provider {
	if !cfg.Enabled {
		logger.Info("NER capability disabled, using rule-only detection")
		return Unavailable{}
	}

	provider := newBackendProvider(cfg, logger)
	if provider == nil {
		logger.Warn("NER backend unavailable, falling back to rule-only detection",
			zap.String("model_path", cfg.ModelPath))
		return Unavailable{}
	}
	return provider
}
