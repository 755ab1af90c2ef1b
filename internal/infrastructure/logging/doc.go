// Package logging provides structured logging for the Croquetia broker.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and honours the configured level and format.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("broker listening", "address", cfg.Broker.Address())
//	logger.Error("gateway command failed", "op", "setVars", "error", err)
//
// Pixel frames are logged at debug only; at 10 Hz they would drown
// everything else.
package logging
