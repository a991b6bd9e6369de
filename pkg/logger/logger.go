package logger

import "sync/atomic"

// Backend is a logging sink. The package fans every call out to all
// configured backends so a console logger and a capture buffer can
// coexist (the latter is what tests use).
type Backend interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type dispatcher struct {
	backends []Backend
}

var current atomic.Pointer[dispatcher]

// Init installs the global logging backends. Calling any of the
// package-level functions before Init is a no-op.
func Init(backends ...Backend) {
	current.Store(&dispatcher{backends: backends})
}

func get() *dispatcher {
	return current.Load()
}

// Debug writes a message at DEBUG level to all configured backends.
func Debug(message string, keyvals ...any) {
	d := get()
	if d == nil {
		return
	}
	for _, b := range d.backends {
		b.Debug(message, keyvals...)
	}
}

// Info writes a message at INFO level to all configured backends.
func Info(message string, keyvals ...any) {
	d := get()
	if d == nil {
		return
	}
	for _, b := range d.backends {
		b.Info(message, keyvals...)
	}
}

// Warn writes a message at WARN level to all configured backends.
func Warn(message string, keyvals ...any) {
	d := get()
	if d == nil {
		return
	}
	for _, b := range d.backends {
		b.Warn(message, keyvals...)
	}
}

// Error writes a message at ERROR level to all configured backends.
func Error(message string, keyvals ...any) {
	d := get()
	if d == nil {
		return
	}
	for _, b := range d.backends {
		b.Error(message, keyvals...)
	}
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	d := get()
	if d == nil {
		return
	}
	for _, b := range d.backends {
		b.Fatal(message, keyvals...)
	}
}
