package rtc

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLoggerFactory routes pion's internal loggers into zerolog so the
// whole process shares one log stream.
func NewLoggerFactory() logging.LoggerFactory {
	return &loggerFactory{}
}

type loggerFactory struct{}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	l := log.With().Str("module", "pion."+scope).Logger()
	return &leveledLogger{l: l}
}

type leveledLogger struct {
	l zerolog.Logger
}

func (l *leveledLogger) Trace(msg string)             { l.l.Trace().Msg(msg) }
func (l *leveledLogger) Tracef(f string, args ...any) { l.l.Trace().Msg(fmt.Sprintf(f, args...)) }
func (l *leveledLogger) Debug(msg string)             { l.l.Debug().Msg(msg) }
func (l *leveledLogger) Debugf(f string, args ...any) { l.l.Debug().Msg(fmt.Sprintf(f, args...)) }
func (l *leveledLogger) Info(msg string)              { l.l.Info().Msg(msg) }
func (l *leveledLogger) Infof(f string, args ...any)  { l.l.Info().Msg(fmt.Sprintf(f, args...)) }
func (l *leveledLogger) Warn(msg string)              { l.l.Warn().Msg(msg) }
func (l *leveledLogger) Warnf(f string, args ...any)  { l.l.Warn().Msg(fmt.Sprintf(f, args...)) }
func (l *leveledLogger) Error(msg string)             { l.l.Error().Msg(msg) }
func (l *leveledLogger) Errorf(f string, args ...any) { l.l.Error().Msg(fmt.Sprintf(f, args...)) }
