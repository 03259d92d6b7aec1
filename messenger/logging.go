package messenger

import (
	"github.com/sirupsen/logrus"
)

// LoggerHelper provides standardized logging fields for the messenger package
type LoggerHelper struct {
	fields logrus.Fields
}

// NewLogger creates a logger helper tagged with function and package
func NewLogger(function string) *LoggerHelper {
	return &LoggerHelper{
		fields: logrus.Fields{
			"function": function,
			"package":  "messenger",
		},
	}
}

// WithField adds a custom field to the logger
func (l *LoggerHelper) WithField(key string, value interface{}) *LoggerHelper {
	l.fields[key] = value
	return l
}

// WithMessage adds the routing fields of msg
func (l *LoggerHelper) WithMessage(msg *Message) *LoggerHelper {
	if msg == nil {
		return l
	}
	l.fields["channel"] = msg.ChannelID.String()
	l.fields["encryption"] = msg.EncryptionType.String()
	l.fields["message_type"] = msg.MessageType.String()
	l.fields["payload_size"] = len(msg.Payload)
	if id, err := msg.ID(); err == nil {
		l.fields["message_id"] = uint16(id)
	}
	return l
}

// WithError adds error information to the logger
func (l *LoggerHelper) WithError(err error, operation string) *LoggerHelper {
	if err != nil {
		l.fields["error"] = err.Error()
	}
	l.fields["operation"] = operation
	return l
}

// Debug logs a debug message
func (l *LoggerHelper) Debug(message string) {
	logrus.WithFields(l.fields).Debug(message)
}

// Info logs an info message
func (l *LoggerHelper) Info(message string) {
	logrus.WithFields(l.fields).Info(message)
}

// Warn logs a warning message
func (l *LoggerHelper) Warn(message string) {
	logrus.WithFields(l.fields).Warn(message)
}

// Error logs an error message
func (l *LoggerHelper) Error(message string) {
	logrus.WithFields(l.fields).Error(message)
}
