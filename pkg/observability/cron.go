package observability

import "github.com/robfig/cron/v3"

// cronLogger adapts Logger to cron.Logger
type cronLogger struct {
	logger *Logger
}

// CronLogger returns a cron.Logger writing through l. Cron's routine
// scheduling chatter is logged at debug level.
func CronLogger(l *Logger) cron.Logger {
	if l == nil {
		l = NopLogger()
	}
	return cronLogger{logger: l.WithField("component", "cron")}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.WithError(err).logger.Error(msg, keysAndValues...)
}
