package source

import "time"

// NewBahamut builds the Bahamut (動畫瘋) adapter.
func NewBahamut(baseURL string, timeout time.Duration) *GenericAPISource {
	return NewGenericAPISource("bahamut", baseURL, timeout)
}
