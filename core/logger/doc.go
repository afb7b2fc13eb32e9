// Package logger provides slog attribute helpers shared across the
// admission components.
//
// Helpers return an empty slog.Attr for zero values, so call sites can
// attach attributes unconditionally:
//
//	log.Info("operation admitted",
//		logger.UserID(userID),
//		logger.Operation(kind),
//		logger.Cost(cost),
//		logger.Error(err)) // dropped when err is nil
package logger
