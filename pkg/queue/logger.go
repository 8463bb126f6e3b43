package queue

import (
	"github.com/ThreeDotsLabs/watermill"

	"agro-assistant-be/internal/pkg/logger"
)

// watermillAdapter bridges watermill's logging into our logger.
type watermillAdapter struct {
	log    logger.ILogger
	fields watermill.LogFields
}

func newWatermillAdapter(log logger.ILogger) watermill.LoggerAdapter {
	return &watermillAdapter{log: log}
}

func (a *watermillAdapter) details(fields watermill.LogFields) map[string]interface{} {
	details := make(map[string]interface{}, len(a.fields)+len(fields))
	for k, v := range a.fields {
		details[k] = v
	}
	for k, v := range fields {
		details[k] = v
	}
	return details
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	details := a.details(fields)
	details["error"] = err
	a.log.Error("queue", msg, details)
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info("queue", msg, a.details(fields))
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug("queue", msg, a.details(fields))
}

func (a *watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug("queue", msg, a.details(fields))
}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{log: a.log, fields: a.details(fields)}
}
