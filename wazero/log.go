// Package wazero holds the host functions a robohost wasm guest imports from the
// "rrp" host module.
package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/reglet-dev/robohost/abi"
	"github.com/tetratelabs/wazero/api"
)

type logContextKey string

const pluginKey logContextKey = "plugin"

// HostModuleName is the import module name guests use for host functions.
const HostModuleName = "rrp"

// LogMessageFunc is the import name of the log host function.
const LogMessageFunc = "log_message"

// UnpackPtrLen splits a packed uint64 into a 32-bit pointer (high) and length (low).
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	//nolint:gosec // WASM pointers and lengths are 32-bit
	return uint32(packed >> 32), uint32(packed)
}

// PackPtrLen is the inverse of UnpackPtrLen.
func PackPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// WithPlugin tags ctx so guest log records carry the plugin name.
func WithPlugin(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, pluginKey, name)
}

// LogMessage returns the `log_message` host function. It receives a packed uint64
// (ptr+len) pointing to a JSON-encoded abi.LogMessage and returns nothing.
func LogMessage(logger *slog.Logger) api.GoModuleFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		logMsg, ok := readLogMessage(ctx, logger, mod, stack[0])
		if !ok {
			return
		}

		attrs := convertLogAttrs(logMsg.Attrs)
		if name, ok := ctx.Value(pluginKey).(string); ok && name != "" {
			attrs = append(attrs, slog.String("plugin", name))
		}
		logger.LogAttrs(ctx, parseLogLevel(logger, logMsg.Level), logMsg.Message, attrs...)
	}
}

func readLogMessage(ctx context.Context, logger *slog.Logger, mod api.Module, packed uint64) (*abi.LogMessage, bool) {
	ptr, length := UnpackPtrLen(packed)

	messageBytes, ok := mod.Memory().Read(ptr, length)
	if !ok {
		logger.ErrorContext(ctx, "wazero: failed to read log message from guest memory", "ptr", ptr, "len", length)
		return nil, false
	}

	var logMsg abi.LogMessage
	if err := json.Unmarshal(messageBytes, &logMsg); err != nil {
		logger.ErrorContext(ctx, "wazero: failed to unmarshal log message", "error", err)
		return nil, false
	}

	return &logMsg, true
}

func parseLogLevel(logger *slog.Logger, levelStr string) slog.Level {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		logger.Warn("wazero: unknown log level from plugin", "level", levelStr)
	}
	return level
}

func convertLogAttrs(wireAttrs []abi.LogAttr) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(wireAttrs))
	for _, attr := range wireAttrs {
		attrs = append(attrs, convertSingleAttr(attr))
	}
	return attrs
}

func convertSingleAttr(attr abi.LogAttr) slog.Attr {
	switch attr.Type {
	case "string":
		return slog.String(attr.Key, attr.Value)
	case "int64":
		if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
			return slog.Int64(attr.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(attr.Value); err == nil {
			return slog.Bool(attr.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
			return slog.Float64(attr.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, attr.Value); err == nil {
			return slog.Time(attr.Key, v)
		}
	case "error":
		return slog.Any(attr.Key, fmt.Errorf("%s", attr.Value))
	}
	// unknown types and parse failures stay text
	return slog.Any(attr.Key, attr.Value)
}
