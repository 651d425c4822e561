package frame

// Logger is the optional logging sink for the frame layer. Spec.md §6 lists
// logging sinks for info/warn/error as optional host plug points that "may
// be no-ops" — a nil Logger is exactly that no-op.
type Logger interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

func (f *Inst) warnf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Warnf(format, args...)
	}
}

func (f *Inst) errorf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Errorf(format, args...)
	}
}
