package core

// Logger is any service that can report application events; implementations
// may forward errors to an external tracker in addition to plain logs.
// Args may include an `error`, a map of extras and the acting user.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
