package caption

// Logger is the subset of logging.Logger the caption components use.
type Logger interface {
	DebugTag(tag, msg string, args ...interface{})
	InfoTag(tag, msg string, args ...interface{})
	WarnTag(tag, msg string, args ...interface{})
	ErrorTag(tag, msg string, args ...interface{})
}

const logTag = "Caption"

type nopLogger struct{}

func (nopLogger) DebugTag(string, string, ...interface{}) {}
func (nopLogger) InfoTag(string, string, ...interface{})  {}
func (nopLogger) WarnTag(string, string, ...interface{})  {}
func (nopLogger) ErrorTag(string, string, ...interface{}) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
