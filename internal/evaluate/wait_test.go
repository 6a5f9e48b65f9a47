package evaluate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPage reports a selector present after a number of polls.
type countingPage struct {
	*Document
	polls   atomic.Int32
	matchAt int32
	match   string
}

func (c *countingPage) Count(ctx context.Context, selector string) (int, error) {
	n := c.polls.Add(1)
	if selector == c.match && n >= c.matchAt {
		return 1, nil
	}
	return 0, nil
}

func TestWaitForAnyImmediateMatch(t *testing.T) {
	doc := mustParse(t)

	sel, err := WaitForAny(context.Background(), doc, []string{"#missing", ".price"}, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, ".price", sel)
}

func TestWaitForAnyEventualMatch(t *testing.T) {
	page := &countingPage{Document: mustParse(t), match: ".lazy", matchAt: 5}

	sel, err := WaitForAny(context.Background(), page, []string{".lazy"}, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, ".lazy", sel)
}

func TestWaitForAnyTimeout(t *testing.T) {
	doc := mustParse(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := WaitForAny(ctx, doc, []string{"#never"}, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForAnyNoSelectors(t *testing.T) {
	doc := mustParse(t)

	_, err := WaitForAny(context.Background(), doc, nil, 0)
	assert.Error(t, err)
}
