package materializer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

type fakeSource struct {
	refreshErr error
	readErr    error
	rows       []types.GapRow
	token      time.Time
	readToken  time.Time

	refreshCalls int
	lastFilter   types.GapFilter
}

func (f *fakeSource) RefreshGapReport(context.Context) (time.Time, error) {
	f.refreshCalls++
	return f.token, f.refreshErr
}

func (f *fakeSource) ReadGapReport(_ context.Context, _ int64, filter types.GapFilter) ([]types.GapRow, time.Time, error) {
	f.lastFilter = filter
	return f.rows, f.readToken, f.readErr
}

func TestMaterialize_ReturnsRows(t *testing.T) {
	token := time.Now()
	src := &fakeSource{
		rows:      []types.GapRow{{ChainName: "Food Mart"}, {ChainName: "Quick Stop"}},
		token:     token,
		readToken: token,
	}

	ds, err := New(src).Materialize(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 2)
	assert.Equal(t, int64(42), ds.TenantID)
	assert.True(t, ds.Token.Equal(token))
}

func TestMaterialize_AlwaysReadsUnfiltered(t *testing.T) {
	token := time.Now()
	src := &fakeSource{token: token, readToken: token}

	_, err := New(src).Materialize(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, src.lastFilter.IsUnfiltered())
}

func TestMaterialize_EmptyDatasetIsNotAnError(t *testing.T) {
	token := time.Now()
	src := &fakeSource{token: token, readToken: token}

	ds, err := New(src).Materialize(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)
}

func TestMaterialize_RefreshFailure(t *testing.T) {
	src := &fakeSource{refreshErr: errors.New("warehouse down")}

	ds, err := New(src).Materialize(context.Background(), 42)
	assert.Nil(t, ds)
	require.ErrorIs(t, err, ErrAggregation)
}

func TestMaterialize_ReadFailure(t *testing.T) {
	token := time.Now()
	src := &fakeSource{token: token, readToken: token, readErr: errors.New("read blew up")}

	_, err := New(src).Materialize(context.Background(), 42)
	require.ErrorIs(t, err, ErrAggregation)
}

func TestMaterialize_TokenMismatch(t *testing.T) {
	src := &fakeSource{
		token:     time.Now(),
		readToken: time.Now().Add(time.Second),
		rows:      []types.GapRow{{ChainName: "Food Mart"}},
	}

	_, err := New(src).Materialize(context.Background(), 42)
	require.ErrorIs(t, err, ErrAggregation)
}

func TestMaterialize_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	src := &fakeSource{refreshErr: errors.New("warehouse down")}
	m := New(src)

	for i := 0; i < 5; i++ {
		_, err := m.Materialize(context.Background(), 42)
		require.ErrorIs(t, err, ErrAggregation)
	}

	// Once open, the breaker fails fast without touching the source.
	assert.Equal(t, 3, src.refreshCalls)
}
