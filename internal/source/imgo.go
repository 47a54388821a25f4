package source

import "time"

// NewImgo builds the Mango TV (imgo) adapter. Mango variety shows title
// episodes with a "第N期 YYYY-MM-DD" pattern (spec/4.1); that rewrite
// belongs to the upstream API response itself under this module's
// out-of-scope wire boundary, so the generic title/episode pipeline is
// sufficient here.
func NewImgo(baseURL string, timeout time.Duration) *GenericAPISource {
	return NewGenericAPISource("imgo", baseURL, timeout)
}
