// Package erruser provides errors whose Error() returns only a user-facing
// message. The technical cause is reachable via Unwrap() and an optional
// recovery hint via HintOf, so the CLI can print "Details:" and "Hint:" lines
// under the message.
package erruser

import "errors"

// Err holds a user-facing message, an optional cause, and an optional hint.
type Err struct {
	Msg  string
	Hint string
	Err  error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying cause (nil-safe).
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given user-facing message wrapping err.
// err may be nil.
func New(msg string, err error) error {
	return &Err{Msg: msg, Err: err}
}

// WithHint returns a copy of err carrying hint. A non-*Err error is wrapped
// with its own text as the message.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	var e *Err
	if errors.As(err, &e) {
		cp := *e
		cp.Hint = hint
		return &cp
	}
	return &Err{Msg: err.Error(), Hint: hint, Err: err}
}

// HintOf returns the first hint found in err's chain, or "".
func HintOf(err error) string {
	var e *Err
	for err != nil {
		if errors.As(err, &e) {
			if e.Hint != "" {
				return e.Hint
			}
			err = e.Err
			continue
		}
		return ""
	}
	return ""
}
