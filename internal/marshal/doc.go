// Package marshal converts values between Go and the goja script runtime.
//
// Conversions are recursive over arrays and string-keyed objects and terminal
// for null/undefined, booleans, numbers and strings. Both directions keep a
// visited set keyed by identity, so cyclic structures fail with ErrCycle
// instead of recursing forever.
//
// Script values are first classified into a Kind bitmask (see Classify), one
// bit per recognized engine kind, and conversion dispatches on that mask.
// Classification relies on engine identity, so an object that merely claims
// a builtin Symbol.toStringTag converts as the plain object it is.
//
// Array-likes are capped at DefaultMaxLength elements. The Context variants
// of ToHost and ToScript stop once their context is done.
package marshal
