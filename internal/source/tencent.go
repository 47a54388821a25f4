package source

import "time"

// NewTencent builds the Tencent Video adapter. The real upstream is a
// signed, cookie-gated private API (spec/1 places its wire bytes out of
// scope); this wraps GenericAPISource against a configurable base URL so
// the fan-out/merge/cache machinery has a concrete source to exercise.
func NewTencent(baseURL string, timeout time.Duration) *GenericAPISource {
	return NewGenericAPISource("tencent", baseURL, timeout)
}
