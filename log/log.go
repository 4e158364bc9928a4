// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the contextual, module-scoped logger used across
// harvestnode, modeled on the module-logger convention of the teacher
// codebase but backed by go.uber.org/zap instead of a vendored log15 fork.
package log

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module names, mirroring the teacher's log.ModuleName enumeration.
const (
	ModuleCrypto     = "crypto"
	ModuleTypes      = "types"
	ModuleStorage    = "storage"
	ModuleState      = "state"
	ModuleMempool    = "mempool"
	ModuleConsensus  = "consensus"
	ModuleSyncQueue  = "syncqueue"
	ModuleP2P        = "p2p"
	ModuleNode       = "node"
	ModuleAPI        = "api"
	ModuleCommon     = "common"
)

var base *zap.SugaredLogger

func init() {
	enc := zapcore.EncoderConfig{
		TimeKey:    "ts",
		LevelKey:   "level",
		MessageKey: "msg",
		NameKey:    "module",
		EncodeTime: zapcore.ISO8601TimeEncoder,
		EncodeLevel: func(l zapcore.Level, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(colorLevel(l))
		},
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.AddSync(colorable.NewColorable(os.Stderr)),
		zapcore.DebugLevel,
	)
	base = zap.New(core).Sugar()
}

func colorLevel(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return color.New(color.FgHiBlack).Sprint("DEBUG")
	case zapcore.InfoLevel:
		return color.New(color.FgGreen).Sprint("INFO")
	case zapcore.WarnLevel:
		return color.New(color.FgYellow).Sprint("WARN")
	case zapcore.ErrorLevel:
		return color.New(color.FgRed).Sprint("ERROR")
	default:
		return l.CapitalString()
	}
}

// Logger is a contextual logger bound to a module and an optional set of
// key/value fields, following the teacher's New(ctx ...interface{}) idiom.
type Logger struct {
	name   string
	fields []interface{}
}

// NewModuleLogger returns a Logger scoped to the given module name.
func NewModuleLogger(module string) Logger {
	return Logger{name: module}
}

// New returns a Logger with additional key/value context appended.
func New(ctx ...interface{}) Logger {
	return Logger{fields: ctx}
}

// NewWith returns a copy of l with additional key/value context appended.
func (l Logger) NewWith(ctx ...interface{}) Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(ctx))
	fields = append(fields, l.fields...)
	fields = append(fields, ctx...)
	return Logger{name: l.name, fields: fields}
}

func (l Logger) sugared() *zap.SugaredLogger {
	s := base
	if l.name != "" {
		s = s.Named(l.name)
	}
	if len(l.fields) > 0 {
		s = s.With(l.fields...)
	}
	return s
}

func (l Logger) Debug(msg string, ctx ...interface{}) { l.sugared().Debugw(msg, ctx...) }
func (l Logger) Info(msg string, ctx ...interface{})  { l.sugared().Infow(msg, ctx...) }
func (l Logger) Warn(msg string, ctx ...interface{})  { l.sugared().Warnw(msg, ctx...) }
func (l Logger) Error(msg string, ctx ...interface{}) { l.sugared().Errorw(msg, ctx...) }

// CritWithStack logs at error level with a stack trace and exits, matching
// the teacher's logger.CritWithStack behavior for unreachable code paths.
func (l Logger) CritWithStack(msg string, ctx ...interface{}) {
	l.sugared().Errorw(fmt.Sprintf("CRIT: %s", msg), ctx...)
	os.Exit(1)
}
