package slice

import "strings"

type withOpts struct {
	caseInsensitive bool
}

// Option adjusts how the match helpers compare values.
type Option func(*withOpts)

// WithCaseInsensitive makes Contains fold case when comparing.
func WithCaseInsensitive() Option {
	return func(o *withOpts) { o.caseInsensitive = true }
}

// Contains reports whether val is present in s.
func Contains(s []string, val string, opts ...Option) bool {
	var o withOpts
	for _, opt := range opts {
		opt(&o)
	}
	for _, v := range s {
		if v == val || (o.caseInsensitive && strings.EqualFold(v, val)) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any of vals is present in s.
func ContainsAny(s []string, vals ...string) bool {
	for _, val := range vals {
		if Contains(s, val) {
			return true
		}
	}
	return false
}

// Omit returns s without any of vals, preserving order.
func Omit(s []string, vals ...string) []string {
	var out []string
	for _, v := range s {
		if !Contains(vals, v) {
			out = append(out, v)
		}
	}
	return out
}
