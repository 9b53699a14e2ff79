package options

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FilteringCore is custom implementation of zapcore.Core that allows to filter
// log entries using custom filtering function.
type FilteringCore struct {
	zapcore.Core
	filter FilterFunc
}

// FilterFunc is the filter function that is called to check whether the given
// entry together with the associated fields is to be written to a core or not.
type FilterFunc func(zapcore.Entry) bool

// NewFilteringCore returns a core middleware that uses the given filter function
// to decide whether to log this message or not.
func NewFilteringCore(next zapcore.Core, filter FilterFunc) zapcore.Core {
	return &FilteringCore{next, filter}
}

// With implements zapcore.Core interface, the filter is kept for the child.
func (c *FilteringCore) With(fields []zapcore.Field) zapcore.Core {
	return &FilteringCore{c.Core.With(fields), c.filter}
}

// Check implements zapcore.Core interface and performs log entries filtering.
func (c *FilteringCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.filter(e) {
		return c.Core.Check(e, ce)
	}
	return ce
}

// ComponentFilter passes entries of the named loggers (and their children)
// and all entries of warning level and above. Empty list passes everything.
func ComponentFilter(names []string) FilterFunc {
	if len(names) == 0 {
		return func(zapcore.Entry) bool { return true }
	}
	return func(e zapcore.Entry) bool {
		if e.Level >= zapcore.WarnLevel {
			return true
		}
		for _, n := range names {
			if e.LoggerName == n || strings.HasPrefix(e.LoggerName, n+".") {
				return true
			}
		}
		return false
	}
}

// FilterComponents wraps log with ComponentFilter for the given names.
func FilterComponents(log *zap.Logger, names []string) *zap.Logger {
	if len(names) == 0 {
		return log
	}
	return log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return NewFilteringCore(c, ComponentFilter(names))
	}))
}
