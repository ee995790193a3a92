package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind error
	}{
		{"input", InputError("op", "bad %s", "x"), ErrInput},
		{"data", DataError("op", "insufficient history"), ErrData},
		{"numeric", NumericError("op", "division by zero"), ErrNumeric},
		{"optimization", OptimizationError("op", "status=%v", "IterationLimit"), ErrOptimization},
		{"provider", ProviderError("op", errors.New("timeout")), ErrProvider},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.kind)
			assert.Equal(t, tc.kind, KindOf(tc.err))

			// Kinds survive further wrapping
			wrapped := fmt.Errorf("outer: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.kind)
			assert.Equal(t, tc.kind, KindOf(wrapped))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := DataError("returns.build", "insufficient history for %s", "AAPL")
	assert.Equal(t, "returns.build: data error: insufficient history for AAPL", err.Error())

	cause := errors.New("connection refused")
	err = ProviderError("fred", cause)
	assert.Equal(t, "fred: provider error: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.Nil(t, KindOf(nil))
}
