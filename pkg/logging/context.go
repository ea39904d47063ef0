package logging

import (
	"log/slog"
)

// WithJoin creates a logger tagged with a join invocation id.
// Every log line of one join run carries the same id.
//
// Example:
//
//	log := logging.WithJoin(id)
//	log.Info("switching to partitioned execution", "mode", mode)
func WithJoin(joinID string) *slog.Logger {
	return GetLogger().With("join_id", joinID)
}

// WithPartition derives a logger for one spilled partition of a join.
// level is the recursion depth, bucket the partition number within it.
func WithPartition(parent *slog.Logger, level, bucket int) *slog.Logger {
	if parent == nil {
		parent = GetLogger()
	}
	return parent.With("level", level, "bucket", bucket)
}

// WithTable creates a logger with table context.
//
// Example:
//
//	log := logging.WithTable("orders.csv")
//	log.Info("table loaded", "rows", n)
func WithTable(tableName string) *slog.Logger {
	return GetLogger().With("table", tableName)
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("spill")
//	log.Info("component initialized")
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
