package llm

import (
	"time"

	"github.com/xiaot623/gogo/travel/internal/log"
)

// NewLLMClient returns the mock model in mock mode and a real client
// otherwise.
func NewLLMClient(mock bool, baseURL, apiKey string, timeout time.Duration) LLMClient {
	if mock {
		log.Infof("GOGO_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
