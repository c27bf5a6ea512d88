// Package obslog provides structured logging for the voice orchestrator with
// automatic redaction of API keys and bearer tokens.
//
// It wraps Go's standard log/slog with convenience functions for state
// transitions and tool calls/results. All exported
// functions use the global DefaultLogger, which can be reconfigured for
// different verbosity levels.
package obslog

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// DefaultLogger is the global structured logger instance. Safe for concurrent use.
var DefaultLogger *slog.Logger

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	DefaultLogger = slog.New(handler)
}

// SetLevel replaces the global logger with one at the given level.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	DefaultLogger = slog.New(handler)
}

// SetVerbose is a convenience wrapper around SetLevel for CLI verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelInfo)
}

func Info(msg string, args ...any)  { DefaultLogger.Info(msg, args...) }
func Debug(msg string, args ...any) { DefaultLogger.Debug(msg, args...) }
func Warn(msg string, args ...any)  { DefaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { DefaultLogger.Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// StateTransition logs a state-machine transition at info level.
func StateTransition(from, to, trigger string) {
	Info("state transition", "from", from, "to", to, "trigger", trigger)
}

// ToolCall logs a tool invocation with its argument count.
func ToolCall(name, callID string, argCount int) {
	Info("tool call", "tool", name, "call_id", callID, "args", argCount)
}

// ToolResult logs the outcome of a tool invocation.
func ToolResult(name, callID string, ok bool, durationMs int64) {
	if ok {
		Info("tool result", "tool", name, "call_id", callID, "duration_ms", durationMs)
		return
	}
	Warn("tool result failed", "tool", name, "call_id", callID, "duration_ms", durationMs)
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_\-.]+`),
}

// Redact removes API keys and bearer tokens from a string, preserving a short
// prefix for debugging while hiding the sensitive remainder.
func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return result
}
