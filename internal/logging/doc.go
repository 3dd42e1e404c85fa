// Package logging wraps zap with context-aware methods for companiond.
//
// Every method takes a context so correlation data (companion, user, request
// and OpenTelemetry trace ids) is attached automatically:
//
//	ctx = logging.WithPair(ctx, companionID, userID)
//	logger.Warn(ctx, "degraded_mode", zap.String("reason", "timeout"))
//
// Chat content never reaches the sinks verbatim: the redacting encoder masks
// message, prompt and response fields and credential-shaped values.
//
// Outputs are stdout (JSON or console) and, optionally, an OpenTelemetry log
// provider through the otelzap bridge. Info and below are sampled; errors are
// never sampled.
package logging
