// config.go

package mlearn

type configStruct struct {
	logLevel               LogLevel
	dontPanic              bool
	defaultErrHandlingFunc func(errType LogLevel, packageName string, funcName string, errMsg string)
	numWorkers             int
}

var Config *configStruct = &configStruct{}

type LogLevel int

const (
	// LogLevelDebug is the log level for debug messages.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the log level for info messages.
	LogLevelInfo
	// LogLevelWarning is the log level for warning messages.
	LogLevelWarning
	// LogLevelFatal is the log level for fatal messages.
	LogLevelFatal
)

func (c *configStruct) SetLogLevel(level LogLevel) {
	c.logLevel = level
}

func (c *configStruct) GetLogLevel() LogLevel {
	return LogLevel(c.logLevel)
}

func (c *configStruct) SetDontPanic(dontPanic bool) {
	c.dontPanic = dontPanic
}

func (c *configStruct) GetDontPanicStatus() bool {
	return c.dontPanic
}

func (c *configStruct) SetDefaultErrHandlingFunc(fn func(errType LogLevel, packageName string, funcName string, errMsg string)) {
	c.defaultErrHandlingFunc = fn
}

func (c *configStruct) GetDefaultErrHandlingFunc() func(errType LogLevel, packageName string, funcName string, errMsg string) {
	return c.defaultErrHandlingFunc
}

// SetNumWorkers caps the number of goroutines used by parallel estimator
// paths (forest fit and blocked prediction, k-means blocks). Zero or a
// negative value restores the default of runtime.NumCPU().
func (c *configStruct) SetNumWorkers(n int) {
	c.numWorkers = n
}

func (c *configStruct) GetNumWorkers() int {
	return c.numWorkers
}

// ======================== Configs ========================

// SetDefaultConfig returns the Config to its default values.
func SetDefaultConfig() {
	Config.logLevel = LogLevelInfo
	Config.dontPanic = false
	Config.defaultErrHandlingFunc = nil
	Config.numWorkers = 0
}
