package logging

import "log/slog"

// LevelTrace is a custom level below slog.LevelDebug for very chatty output
// (per-message handshake traffic, file-by-file archive progress).
const LevelTrace = slog.LevelDebug - 4

// LevelFromVerbosity maps a -v flag count to a slog level.
//
//	0  -> Warn  (default: only problems)
//	1  -> Info  (phase-by-phase progress)
//	2  -> Debug (per-package detail)
//	3+ -> Trace (wire-level detail)
func LevelFromVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	case v == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}
