package endpoint

// Logger is the optional logging sink for the endpoint layer (spec.md §6:
// "Logging sinks for info/warn/error (optional; may be no-ops)"). A nil
// Logger installed on an Endpoint makes every call below a no-op.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

func (ep *Endpoint) infof(format string, args ...any) {
	if ep.logger != nil {
		ep.logger.Infof(format, args...)
	}
}

func (ep *Endpoint) warnf(format string, args ...any) {
	if ep.logger != nil {
		ep.logger.Warnf(format, args...)
	}
}

func (ep *Endpoint) errorf(format string, args ...any) {
	if ep.logger != nil {
		ep.logger.Errorf(format, args...)
	}
}
