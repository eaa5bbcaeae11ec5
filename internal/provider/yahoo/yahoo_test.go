package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/stretchr/testify/require"

	"marketquotes/internal/provider"
)

// fakeBackend answers from a fixed table, like a canned upstream.
func fakeBackend(table map[string]finance.Quote) Backend {
	return func(symbol string) (*finance.Quote, error) {
		q, ok := table[symbol]
		if !ok {
			return nil, nil
		}
		return &q, nil
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)

	p, err := New(Config{Kind: provider.KindStock})
	require.NoError(t, err)
	require.Equal(t, "yahoo", p.Name())
	require.NotNil(t, p.cfg.Backend)
}

func TestSymbol(t *testing.T) {
	t.Parallel()

	fx, err := New(Config{Kind: provider.KindForex, Backend: fakeBackend(nil)})
	require.NoError(t, err)
	require.Equal(t, "USDINR=X", fx.Symbol("USDINR"))
	require.Equal(t, "USDINR=X", fx.Symbol("USDINR=X"))

	st, err := New(Config{Kind: provider.KindStock, Suffix: ".NS", Backend: fakeBackend(nil)})
	require.NoError(t, err)
	require.Equal(t, "INFY.NS", st.Symbol("INFY"))
	require.Equal(t, "BRK.B", st.Symbol("BRK.B"))
	require.Equal(t, "^NSEI", st.Symbol("^NSEI"))
}

func TestFetch(t *testing.T) {
	t.Parallel()

	// Arrange
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	p, err := New(Config{
		Kind: provider.KindStock,
		Backend: fakeBackend(map[string]finance.Quote{
			"AAPL": {
				Symbol:                     "AAPL",
				ShortName:                  "Apple Inc.",
				RegularMarketPrice:         212.49,
				RegularMarketChange:        -1.58,
				RegularMarketChangePercent: -0.738075,
				RegularMarketPreviousClose: 214.07,
				RegularMarketTime:          1718395200,
				CurrencyID:                 "usd",
			},
		}),
		Now: func() time.Time { return now },
	})
	require.NoError(t, err)

	// Act
	q, err := p.Fetch(t.Context(), "AAPL")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, "Apple Inc.", q.Name)
	require.Equal(t, "212.49", q.Price.String())
	require.Equal(t, "-1.58", q.Change.String())
	require.Equal(t, "-0.7381", q.ChangePercent.String())
	require.Equal(t, "214.07", q.PreviousClose.String())
	require.Equal(t, "USD", q.Currency)
	require.Equal(t, "yahoo", q.Source)
	require.False(t, q.Simulated)
	require.Equal(t, time.Unix(1718395200, 0).UTC(), q.AsOf)
	require.Equal(t, now, q.ReceivedAt)
}

func TestFetch_UnknownSymbol(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Kind: provider.KindStock, Backend: fakeBackend(nil)})
	require.NoError(t, err)

	_, err = p.Fetch(t.Context(), "NOPE")
	require.ErrorIs(t, err, provider.ErrNotFound)
}

func TestFetch_ZeroPriceIsNotFound(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Kind: provider.KindStock, Backend: fakeBackend(map[string]finance.Quote{
		"HALT": {Symbol: "HALT"},
	})})
	require.NoError(t, err)

	_, err = p.Fetch(t.Context(), "HALT")
	require.ErrorIs(t, err, provider.ErrNotFound)
}

func TestFetch_BackendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("remote error")
	p, err := New(Config{Kind: provider.KindStock, Backend: func(string) (*finance.Quote, error) {
		return nil, boom
	}})
	require.NoError(t, err)

	_, err = p.Fetch(t.Context(), "AAPL")
	require.ErrorIs(t, err, boom)
	require.Equal(t, provider.StatusError, provider.Classify(err))
}

func TestFetch_ForexUsesPairSymbol(t *testing.T) {
	t.Parallel()

	var asked string
	p, err := New(Config{Kind: provider.KindForex, Backend: func(symbol string) (*finance.Quote, error) {
		asked = symbol
		return &finance.Quote{RegularMarketPrice: 83.12, CurrencyID: "INR"}, nil
	}})
	require.NoError(t, err)

	q, err := p.Fetch(t.Context(), "USDINR")
	require.NoError(t, err)
	require.Equal(t, "USDINR=X", asked)
	require.Equal(t, "USDINR", q.Symbol)
	require.Equal(t, provider.KindForex, q.Kind)
}

func TestFetch_ContextAbandonsSlowBackend(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	p, err := New(Config{Kind: provider.KindStock, Backend: func(string) (*finance.Quote, error) {
		<-release
		return nil, nil
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Fetch(ctx, "AAPL")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, provider.StatusTimeout, provider.Classify(err))
}
