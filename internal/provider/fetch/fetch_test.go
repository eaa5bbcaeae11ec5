package fetch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketquotes/internal/provider"
	"marketquotes/internal/provider/fetch"
	"marketquotes/internal/provider/providermock"
)

func newMock(ctrl *gomock.Controller, name string) *providermock.MockProvider {
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().Name().Return(name).AnyTimes()
	return p
}

func TestFetch_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	// Arrange: the primary fails, the secondary succeeds, the third is never called
	ctrl := gomock.NewController(t)
	primary := newMock(ctrl, "primary")
	secondary := newMock(ctrl, "secondary")
	third := newMock(ctrl, "third")

	primary.EXPECT().Fetch(gomock.Any(), "AAPL").Return(provider.Quote{}, errors.New("503")).Times(1)
	secondary.EXPECT().Fetch(gomock.Any(), "AAPL").
		Return(provider.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(190)}, nil).Times(1)
	third.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	f := fetch.New(time.Second, nil, primary, secondary, third)

	// Act
	res := f.Fetch(t.Context(), "AAPL")

	// Assert
	require.True(t, res.OK())
	require.Equal(t, "secondary", res.Provider)
	require.Equal(t, "AAPL", res.Quote.Symbol)
}

func TestFetch_AllFailMultiProviderIsNotFound(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	a := newMock(ctrl, "a")
	b := newMock(ctrl, "b")
	a.EXPECT().Fetch(gomock.Any(), "ZZZ").Return(provider.Quote{}, fmt.Errorf("decode: %w", provider.ErrMalformed))
	b.EXPECT().Fetch(gomock.Any(), "ZZZ").Return(provider.Quote{}, provider.ErrNotFound)

	res := fetch.New(time.Second, nil, a, b).Fetch(t.Context(), "ZZZ")

	require.Equal(t, provider.StatusNotFound, res.Status)
	require.ErrorIs(t, res.Err, provider.ErrNotFound)
	require.ErrorIs(t, res.Err, provider.ErrMalformed)
}

func TestFetch_SingleProviderKeepsStatus(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := newMock(ctrl, "only")
	p.EXPECT().Fetch(gomock.Any(), "X").Return(provider.Quote{}, fmt.Errorf("decode: %w", provider.ErrMalformed))

	res := fetch.New(time.Second, nil, p).Fetch(t.Context(), "X")
	require.Equal(t, provider.StatusError, res.Status)
	require.Equal(t, "only", res.Provider)
}

func TestFetch_TimeoutAbandonsSlowProvider(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	slow := newMock(ctrl, "slow")
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	// ignores ctx entirely
	slow.EXPECT().Fetch(gomock.Any(), "S").DoAndReturn(func(context.Context, string) (provider.Quote, error) {
		<-release
		return provider.Quote{}, nil
	})

	start := time.Now()
	res := fetch.New(20*time.Millisecond, nil, slow).Fetch(t.Context(), "S")

	require.Equal(t, provider.StatusTimeout, res.Status)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestFetch_PanicBecomesError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := newMock(ctrl, "panicky")
	p.EXPECT().Fetch(gomock.Any(), "P").DoAndReturn(func(context.Context, string) (provider.Quote, error) {
		panic("boom")
	})

	res := fetch.New(time.Second, nil, p).Fetch(t.Context(), "P")
	require.Equal(t, provider.StatusError, res.Status)
	require.ErrorContains(t, res.Err, "boom")
}

func TestFetch_NoProviders(t *testing.T) {
	t.Parallel()

	res := fetch.New(0, nil).Fetch(t.Context(), "X")
	require.Equal(t, provider.StatusError, res.Status)
}

func TestFetch_CanceledContextSkipsProviders(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := newMock(ctrl, "p")
	p.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	res := fetch.New(time.Second, nil, p).Fetch(ctx, "X")
	require.False(t, res.OK())
	require.ErrorIs(t, res.Err, context.Canceled)
}

func TestFetch_FallbackRunsBeforeCallerDeadline(t *testing.T) {
	t.Parallel()

	// Arrange: the upstream hangs past the caller's deadline and ignores ctx.
	ctrl := gomock.NewController(t)
	hung := newMock(ctrl, "hung")
	sim := newMock(ctrl, "sim")
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	hung.EXPECT().Fetch(gomock.Any(), "USDINR").DoAndReturn(func(context.Context, string) (provider.Quote, error) {
		<-release
		return provider.Quote{}, nil
	})
	sim.EXPECT().Fetch(gomock.Any(), "USDINR").
		Return(provider.Quote{Symbol: "USDINR", Price: decimal.RequireFromString("82.9945")}, nil)

	f := fetch.New(5*time.Second, nil, hung)
	f.Fallback = sim
	f.Reserve = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	// Act
	res := f.Fetch(ctx, "USDINR")

	// Assert
	require.True(t, res.OK())
	require.Equal(t, "sim", res.Provider)
	require.NoError(t, ctx.Err())
}

func TestFetch_FallbackRunsAfterCancel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := newMock(ctrl, "p")
	sim := newMock(ctrl, "sim")
	p.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)
	sim.EXPECT().Fetch(gomock.Any(), "ABC").DoAndReturn(func(ctx context.Context, id string) (provider.Quote, error) {
		require.NoError(t, ctx.Err())
		return provider.Quote{Symbol: id}, nil
	})

	f := fetch.New(time.Second, nil, p)
	f.Fallback = sim

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	res := f.Fetch(ctx, "ABC")

	require.True(t, res.OK())
	require.Equal(t, "sim", res.Provider)
}

func TestFetch_ReserveSkipsProvidersThatCannotFit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := newMock(ctrl, "p")
	sim := newMock(ctrl, "sim")
	p.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)
	sim.EXPECT().Fetch(gomock.Any(), "ABC").Return(provider.Quote{Symbol: "ABC"}, nil)

	f := &fetch.Fetcher{Providers: []provider.Provider{p}, Fallback: sim, Timeout: time.Second, Reserve: time.Hour}

	ctx, cancel := context.WithTimeout(t.Context(), time.Minute)
	defer cancel()
	res := f.Fetch(ctx, "ABC")

	require.True(t, res.OK())
	require.Equal(t, "sim", res.Provider)
}

func TestFetch_ThrottledMovesOn(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	paced := newMock(ctrl, "paced")
	next := newMock(ctrl, "next")
	paced.EXPECT().Fetch(gomock.Any(), "AAPL").
		Return(provider.Quote{}, fmt.Errorf("paced: %w", provider.ErrThrottled))
	next.EXPECT().Fetch(gomock.Any(), "AAPL").Return(provider.Quote{Symbol: "AAPL"}, nil)

	res := fetch.New(time.Second, nil, paced, next).Fetch(t.Context(), "AAPL")

	require.True(t, res.OK())
	require.Equal(t, "next", res.Provider)
}

func TestFetch_FallbackOnlyKeepsStatus(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sim := newMock(ctrl, "sim")
	sim.EXPECT().Fetch(gomock.Any(), "X").Return(provider.Quote{}, errors.New("boom"))

	f := fetch.New(time.Second, nil)
	f.Fallback = sim
	res := f.Fetch(t.Context(), "X")

	require.Equal(t, provider.StatusError, res.Status)
	require.Equal(t, "sim", res.Provider)
}
