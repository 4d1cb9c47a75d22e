// Package logx provides a small structured-logging facade over zerolog.
//
// It exposes a value-type Logger with functional Field helpers, plus a
// Service that owns the sink configuration (console, file, Telegram) and
// can swap it at runtime via Apply() without invalidating existing Logger
// values.
package logx
