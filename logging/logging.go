package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu         sync.Mutex
	logFile    *lumberjack.Logger
	consoleMin = logrus.InfoLevel
	fileMin    = logrus.InfoLevel
	levels     map[string]logrus.Level
	entries    map[string]*logrus.Entry
)

// Init configures the log sinks from the [logging] ini section. Per-name
// verbosity uses the same numeric scale as the rest of the configuration
// (0=trace .. 6=off).
func Init(cfg *ini.File, filename string) error {
	mu.Lock()
	defer mu.Unlock()

	sec := cfg.Section("logging")
	consoleMin = toLogrusLevel(sec.Key("console_min_level").MustInt(0))
	fileMin = toLogrusLevel(sec.Key("file_min_level").MustInt(0))

	logFile = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100, // megabytes
		MaxBackups: 1,
	}

	levels = map[string]logrus.Level{
		"core":  toLogrusLevel(sec.Key("core").MustInt(2)),
		"ami":   toLogrusLevel(sec.Key("ami").MustInt(2)),
		"state": toLogrusLevel(sec.Key("state").MustInt(3)),
	}
	entries = make(map[string]*logrus.Entry)
	return nil
}

// Named returns the logger for a component, creating it on first use.
// Safe to call before Init; such loggers log at info level to stdout only.
func Named(name string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()
	if e, ok := entries[name]; ok {
		return e
	}
	level := logrus.InfoLevel
	if l, ok := levels[name]; ok {
		level = l
	}
	e := newEntry(name, level)
	if entries == nil {
		entries = make(map[string]*logrus.Entry)
	}
	entries[name] = e
	return e
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// newEntry builds a logger writing to stdout and the rotating file, each
// gated by its own minimum level. Caller must hold mu.
func newEntry(name string, level logrus.Level) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.AddHook(&writerHook{Writer: os.Stdout, LogLevels: availableLevels(consoleMin)})
	if logFile != nil {
		logger.AddHook(&writerHook{Writer: logFile, LogLevels: availableLevels(fileMin)})
	}
	return logger.WithField("name", name)
}

// writerHook writes logs to the specified writer for provided levels.
type writerHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
}

func (h *writerHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.Writer.Write([]byte(line))
	return err
}

func (h *writerHook) Levels() []logrus.Level {
	return h.LogLevels
}

func availableLevels(min logrus.Level) []logrus.Level {
	levels := []logrus.Level{}
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return levels
}

func toLogrusLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.TraceLevel
	case v == 1:
		return logrus.DebugLevel
	case v == 2:
		return logrus.InfoLevel
	case v == 3:
		return logrus.WarnLevel
	case v == 4:
		return logrus.ErrorLevel
	case v == 5:
		return logrus.FatalLevel
	default:
		return logrus.PanicLevel // off
	}
}
