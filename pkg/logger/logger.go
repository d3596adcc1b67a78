// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured logger used across the SDK.
// Every component asks for one via GetLogger(module, name) the same way
// the rest of the tree does -- a thin zap wrapper, not a new logging API.
package logger

import (
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zap.Logger, tagging every line with its owning module/name.
type Logger struct {
	*zap.Logger
	module string
	name   string
}

var (
	mu      sync.Mutex
	base    *zap.Logger
	loggers = make(map[string]*Logger)
)

// Field re-exports zap's field constructors so call sites never import zap
// directly -- mirrors how the rest of the tree only ever sees this package.
type Field = zapcore.Field

var (
	String   = zap.String
	Int      = zap.Int
	Int32    = zap.Int32
	Int64    = zap.Int64
	Uint64   = zap.Uint64
	Duration = zap.Duration
	Any      = zap.Any
	Error    = zap.Error
	Bool     = zap.Bool
)

// Options configures the process-wide base logger. LogDir enables file
// output with rotation; when empty only the console encoder is installed.
type Options struct {
	Level   string
	LogDir  string
	Console bool
}

// Init installs the process-wide base logger. Safe to call once at startup;
// GetLogger falls back to a sane console-only default if Init was never
// called (useful for tests).
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(opts.Level))

	var cores []zapcore.Core
	if opts.Console || opts.LogDir == "" {
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stdout), level))
	}
	if opts.LogDir != "" {
		w := &lumberjack.Logger{
			Filename:   opts.LogDir + "/gridsdk.log",
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     28,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(w), level))
	}
	base = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	loggers = make(map[string]*Logger)
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	colorize := isatty.IsTerminal(os.Stdout.Fd())
	cfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		s := l.CapitalString()
		if !colorize {
			enc.AppendString(s)
			return
		}
		switch l {
		case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
			enc.AppendString(color.RedString(s))
		case zapcore.WarnLevel:
			enc.AppendString(color.YellowString(s))
		case zapcore.DebugLevel:
			enc.AppendString(color.CyanString(s))
		default:
			enc.AppendString(color.GreenString(s))
		}
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func fileEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
}

// GetLogger returns the shared logger tagged with module/name, creating the
// base logger lazily with defaults if Init was never called.
func GetLogger(module, name string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = zap.NewNop()
		if l, err := zap.NewDevelopment(); err == nil {
			base = l
		}
	}
	key := module + "/" + name
	if l, ok := loggers[key]; ok {
		return l
	}
	l := &Logger{
		Logger: base.With(zap.String("module", module), zap.String("name", name)),
		module: module,
		name:   name,
	}
	loggers[key] = l
	return l
}
