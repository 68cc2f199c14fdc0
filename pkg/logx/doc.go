// Package logx wraps zerolog behind a small structured-logging facade.
//
// Components receive a logx.Logger at construction and derive scoped
// loggers with With(). The zero value is a safe no-op logger, which keeps
// tests quiet without wiring.
package logx
