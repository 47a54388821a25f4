package source

import "time"

// NewHanjutv builds the Hanjutv (Korean drama) adapter, also a default
// SOURCE_ORDER member.
func NewHanjutv(baseURL string, timeout time.Duration) *GenericAPISource {
	return NewGenericAPISource("hanjutv", baseURL, timeout)
}
