package slcan

// Logger is the leveled logger used throughout the module. A
// *zap.SugaredLogger satisfies it.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(template string, args ...interface{}) {}
func (nopLogger) Infof(template string, args ...interface{})  {}
func (nopLogger) Warnf(template string, args ...interface{})  {}
func (nopLogger) Errorf(template string, args ...interface{}) {}

// NopLogger discards everything.
var NopLogger Logger = nopLogger{}
