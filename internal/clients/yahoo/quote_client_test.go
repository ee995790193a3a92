package yahoo

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/sharpe/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubQuoteClient(t *testing.T, calls *int, prices map[string]float64, err error) *QuoteClient {
	client := NewQuoteClient(newTestRepo(t), zerolog.Nop())
	client.fetch = func(symbol string) (*float64, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		price, ok := prices[symbol]
		if !ok {
			return nil, nil
		}
		return &price, nil
	}
	return client
}

func TestQuoteClient_KnownTicker(t *testing.T) {
	calls := 0
	client := newStubQuoteClient(t, &calls, map[string]float64{"AAPL": 189.5}, nil)

	price, err := client.GetRegularMarketPrice(context.Background(), " aapl")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 189.5, *price)

	// Second lookup is served from the cache
	price, err = client.GetRegularMarketPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 1, calls)
}

func TestQuoteClient_UnknownTickerNotCached(t *testing.T) {
	calls := 0
	client := newStubQuoteClient(t, &calls, nil, nil)

	for i := 0; i < 2; i++ {
		price, err := client.GetRegularMarketPrice(context.Background(), "ZZZZ")
		require.NoError(t, err)
		assert.Nil(t, price)
	}
	assert.Equal(t, 2, calls)

	_, err := domain.CheckTickerExists(context.Background(), client, "ZZZZ")
	assert.True(t, errors.Is(err, domain.ErrData))
}

func TestQuoteClient_ProviderError(t *testing.T) {
	calls := 0
	client := newStubQuoteClient(t, &calls, nil, errors.New("tls handshake timeout"))

	_, err := client.GetRegularMarketPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProvider))
}

func TestQuoteClient_TransportFailureIsNotUnknownTicker(t *testing.T) {
	client := NewQuoteClient(newTestRepo(t), zerolog.Nop())
	client.fetch = func(symbol string) (*float64, error) {
		return quotePrice(0, errors.New("Get \"https://query2.finance.yahoo.com/v7/finance/quote\": dial tcp: i/o timeout"))
	}

	price, err := client.GetRegularMarketPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Nil(t, price)
	assert.True(t, errors.Is(err, domain.ErrProvider))

	_, err = domain.CheckTickerExists(context.Background(), client, "AAPL")
	assert.True(t, errors.Is(err, domain.ErrProvider))
	assert.False(t, errors.Is(err, domain.ErrData))
}

func TestQuotePrice(t *testing.T) {
	tests := []struct {
		name    string
		price   float64
		err     error
		want    *float64
		wantErr bool
	}{
		{"positive price", 101.25, nil, floatPtr(101.25), false},
		{"zero price", 0, nil, nil, false},
		{"unknown symbol", 0, errors.New("quote not found for symbol ZZZZ"), nil, false},
		{"http 404", 0, errors.New("unexpected status 404"), nil, false},
		{"timeout", 0, errors.New("context deadline exceeded"), nil, true},
		{"rate limited", 0, errors.New("unexpected status 429"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := quotePrice(tt.price, tt.err)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestQuoteClient_CancelledContext(t *testing.T) {
	calls := 0
	client := newStubQuoteClient(t, &calls, map[string]float64{"AAPL": 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetRegularMarketPrice(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}
