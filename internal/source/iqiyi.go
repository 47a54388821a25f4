package source

import "time"

// NewIQiyi builds the iQiyi adapter, same shape as Tencent's: per-source
// scraping/signing quirks stay inside the real deployment's base URL
// target, not in this contract-conforming wrapper.
func NewIQiyi(baseURL string, timeout time.Duration) *GenericAPISource {
	return NewGenericAPISource("iqiyi", baseURL, timeout)
}
