// Package logging builds partforge's structured logger. distr1-distri
// threads a bare *log.Logger through its Ctx types; this rewrite adopts
// go.uber.org/zap + gopkg.in/natefinch/lumberjack.v2, the structured
// logging/rotation pair mensylisir-kubexm's pkg/logger wires up, since
// that is the stronger convention across the retrieved corpus.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Debug      bool
	LogFile    string // if set, also rotate logs to this path
	MaxSizeMB  int
	MaxBackups int
}

// New builds a *zap.Logger writing human-readable console output, and
// additionally JSON lines to Options.LogFile when set.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level),
	}

	if opts.LogFile != "" {
		maxSize := opts.MaxSizeMB
		if maxSize == 0 {
			maxSize = 50
		}
		maxBackups := opts.MaxBackups
		if maxBackups == 0 {
			maxBackups = 5
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// Sugar is a convenience for call sites that want printf-style logging.
func Sugar(l *zap.Logger) *zap.SugaredLogger { return l.Sugar() }
