// Package logging holds the process-wide structured logger.
//
// It wraps [log/slog]. The CLI installs a logger once with Init and drops it
// with Close; code that logs before Init gets a text logger on stderr. The
// threshold lives in a shared [slog.LevelVar], so SetLevel takes effect on
// loggers already derived with With.
//
// The join engine derives one logger per invocation (WithJoin) and one per
// spilled partition (WithPartition).
package logging
