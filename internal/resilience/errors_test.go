package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"throttled fetch", &FetchError{URL: "https://data.sec.gov/x", StatusCode: 429, Throttled: true}, true},
		{"server error fetch", &FetchError{URL: "https://www.sec.gov/x", StatusCode: 503}, true},
		{"not found fetch", &FetchError{URL: "https://www.sec.gov/x", StatusCode: 404}, false},
		{"wrapped throttle", fmt.Errorf("run: %w", &FetchError{StatusCode: 429, Throttled: true}), true},
		{"connection reset string", errors.New("read tcp: connection reset by peer"), true},
		{"io timeout string", errors.New("dial tcp: i/o timeout"), true},
		{"parse failure", &ParseError{Input: "1.234,56", Reason: "ambiguous separators"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsThrottled(t *testing.T) {
	throttled := fmt.Errorf("fetch: %w", &FetchError{StatusCode: 429, Throttled: true})
	assert.True(t, IsThrottled(throttled))
	assert.False(t, IsThrottled(&FetchError{StatusCode: 500}))
	assert.False(t, IsThrottled(errors.New("boom")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
