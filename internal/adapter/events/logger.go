package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

// LogrusAdapter routes watermill's logging through logrus.
type LogrusAdapter struct {
	log logrus.FieldLogger
}

func NewLogrusAdapter(log logrus.FieldLogger) *LogrusAdapter {
	return &LogrusAdapter{log: log}
}

func (l *LogrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.log.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}

func (l *LogrusAdapter) Info(msg string, fields watermill.LogFields) {
	l.log.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *LogrusAdapter) Debug(msg string, fields watermill.LogFields) {
	l.log.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *LogrusAdapter) Trace(msg string, fields watermill.LogFields) {
	l.log.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l *LogrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LogrusAdapter{log: l.log.WithFields(logrus.Fields(fields))}
}
