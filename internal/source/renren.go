package source

import "time"

// NewRenren builds the Renren Video adapter. Renren is one of the default
// SOURCE_ORDER members (spec/4.1 step 3), so it must work with zero
// configuration; callers pass an empty baseURL only in tests.
func NewRenren(baseURL string, timeout time.Duration) *GenericAPISource {
	return NewGenericAPISource("renren", baseURL, timeout)
}
