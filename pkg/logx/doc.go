// Package logx wraps zerolog behind a small structured-logging API whose
// sinks (console, file) can be swapped at runtime via Service.Apply.
package logx
