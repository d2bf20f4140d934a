package manager

// modelUnavailableError signals a model that failed to load or has no
// configured backend, so the HTTP layer can return 503.
type modelUnavailableError struct{ msg string }

func (e modelUnavailableError) Error() string { return e.msg }

// ErrModelUnavailable constructs a modelUnavailableError.
func ErrModelUnavailable(msg string) error { return modelUnavailableError{msg: msg} }

// IsModelUnavailable reports whether err indicates an unusable model (return 503).
func IsModelUnavailable(err error) bool {
	_, ok := err.(modelUnavailableError)
	return ok
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ op string }

func (e tooBusyError) Error() string { return "too busy: " + e.op }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}
