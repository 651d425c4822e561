package frame

// Option configures an Inst at construction time.
//
// The pattern mirrors a functional-options framing API rather than the
// teacher's CLI-flag style: the protocol core has no binary of its own to
// bind flags to, so it exposes a small With... surface instead.
type Option func(*Inst)

// WithRxEnabled sets the initial receive-enable flag. Defaults to true.
func WithRxEnabled(enabled bool) Option {
	return func(f *Inst) { f.rxEnabled = enabled }
}

// WithTxEnabled sets the initial transmit-enable flag. Defaults to true.
func WithTxEnabled(enabled bool) Option {
	return func(f *Inst) { f.txEnabled = enabled }
}

// WithLogger installs a logging sink for transport-layer drops (invalid SOF
// continuations are never logged per spec; checksum mismatches and overflow
// are). A nil logger (the default) makes these silent, matching spec.md §7:
// "Transport errors... silently drop the frame... No upstream notification."
// The logger exists purely so a caller that wants visibility into drops can
// have it; by default none is installed.
func WithLogger(l Logger) Option {
	return func(f *Inst) { f.logger = l }
}
