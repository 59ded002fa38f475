package serving

import "errors"

// modelUnavailableError signals that no model is loaded and none could be
// loaded, so the HTTP layer can answer 503 instead of 500.
type modelUnavailableError struct{ msg string }

func (e modelUnavailableError) Error() string { return "model unavailable: " + e.msg }

// ErrModelUnavailable constructs a modelUnavailableError.
func ErrModelUnavailable(msg string) error { return modelUnavailableError{msg: msg} }

// IsModelUnavailable reports whether err indicates no servable model.
func IsModelUnavailable(err error) bool {
	var e modelUnavailableError
	return errors.As(err, &e)
}
