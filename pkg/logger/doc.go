// Package logger provides structured logging for the VOOM report pipeline.
//
// It wraps zerolog behind a small Logger interface so components can attach
// fields without depending on zerolog directly:
//
//	log := logger.GetLogger().WithField("component", "carousel")
//	log.InfoWithFields("slide downloaded", map[string]interface{}{
//		"sequence": 3,
//		"url":      src,
//	})
//
// Initialize configures the global instance from config.LoggingConfig; file
// output is appended alongside stdout when a path is configured.
package logger
