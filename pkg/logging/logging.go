// Package logging sets up the structured loggers used by the in-memory
// event bus and by cmd/progression and cmd/search to report a stopped
// projection runtime. It follows the
// field-based logrus setup from evalgo-org-eve's common/logger.go —
// the teacher itself only ever calls log.Printf/fmt.Printf, which is
// kept verbatim for the one-line service-boot banner in each
// cmd/*/main.go rather than replaced here.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a new logrus.Logger for the service named by component,
// emitting JSON in production and a human-readable formatter otherwise,
// and returns an entry carrying the component field.
func New(component string, production bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetLevel(logrus.InfoLevel)
	return logger.WithField("component", component)
}

// WithAggregate attaches the standard aggregate_id/aggregate_type pair
// used throughout the command-handler and projection logs.
func WithAggregate(log *logrus.Entry, aggregateID, aggregateType string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"aggregate_id":   aggregateID,
		"aggregate_type": aggregateType,
	})
}

// WithEvent attaches the standard event_type/event_version pair.
func WithEvent(log *logrus.Entry, eventType string, version int) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"event_type":    eventType,
		"event_version": version,
	})
}
