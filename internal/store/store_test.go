package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.shop.example.com/product/42?ref=x", "shop.example.com"},
		{"http://example.com", "example.com"},
		{"shop.example.com", "shop.example.com"},
		{"www.example.com", "example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Domain(tt.in), tt.in)
	}
}

func TestLearnAndRecall(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	c, err := s.Recall(ctx, "price", "https://shop.example.com/p/1")
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, s.Learn(ctx, "price", ".price-box .price", "https://www.shop.example.com/p/1"))
	require.NoError(t, s.Learn(ctx, "price", ".price-box .price", "https://shop.example.com/p/2"))

	c, err = s.Recall(ctx, "price", "https://shop.example.com/p/3")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ".price-box .price", c.Selector)
	assert.Equal(t, 2, c.SuccessCount)
	assert.Equal(t, 0, c.FailCount)
	assert.Equal(t, 1.0, c.Reliability)
	assert.NotEmpty(t, c.LastUsed)
}

func TestLearnReplacesSelector(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.Learn(ctx, "title", "#old-title", "https://shop.example.com"))
	require.NoError(t, s.Learn(ctx, "title", "h1.title", "https://shop.example.com"))

	c, err := s.Recall(ctx, "title", "https://shop.example.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "h1.title", c.Selector)
	assert.Equal(t, 2, c.SuccessCount)
}

func TestFailLowersReliability(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	url := "https://shop.example.com"

	require.NoError(t, s.Learn(ctx, "price", ".price", url))
	require.NoError(t, s.Fail(ctx, "price", ".price", url))
	require.NoError(t, s.Fail(ctx, "price", ".price", url))
	require.NoError(t, s.Learn(ctx, "price", ".price", url))

	c, err := s.Recall(ctx, "price", url)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.SuccessCount)
	assert.Equal(t, 2, c.FailCount)
	assert.Equal(t, 0.5, c.Reliability)
	assert.NotEmpty(t, c.LastFailed)
}

func TestDomainSelectorsAndStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.Learn(ctx, "price", ".price", "https://a.example.com"))
	require.NoError(t, s.Learn(ctx, "price", ".price", "https://a.example.com"))
	require.NoError(t, s.Learn(ctx, "title", "h1", "https://a.example.com"))
	require.NoError(t, s.Learn(ctx, "price", ".cost", "https://b.example.com"))

	sels, err := s.DomainSelectors(ctx, "https://a.example.com")
	require.NoError(t, err)
	require.Len(t, sels, 2)
	// most successful first
	assert.Equal(t, "price", sels[0].Field)

	domains, err := s.Domains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, domains)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalSelectors)
	assert.Equal(t, 2, st.Domains)
	assert.Equal(t, 4, st.TotalSuccesses)
	assert.Equal(t, 1.0, st.OverallReliability)
}

func TestClear(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.Learn(ctx, "price", ".price", "https://a.example.com"))
	require.NoError(t, s.Learn(ctx, "price", ".cost", "https://b.example.com"))

	n, err := s.Clear(ctx, "a.example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunLifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, "run_1", "https://shop.example.com/p/1", 4))
	require.NoError(t, s.Progress(ctx, "run_1", 2))

	r, err := s.GetRun(ctx, "run_1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "running", r.Status)
	assert.Equal(t, 2, r.CurrentStep)
	assert.Equal(t, 4, r.TotalSteps)

	require.NoError(t, s.CompleteRun(ctx, "run_1", RunOutcome{
		Status:      "partial",
		Succeeded:   3,
		Failed:      1,
		Attempts:    6,
		Retries:     2,
		ArtifactDir: "/tmp/artifacts/run_1",
	}))

	r, err = s.GetRun(ctx, "run_1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "partial", r.Status)
	assert.Equal(t, 3, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 6, r.Attempts)
	assert.Equal(t, 2, r.Retries)
	assert.NotEmpty(t, r.EndTime)
	assert.Equal(t, "/tmp/artifacts/run_1", r.ArtifactDir)
}

func TestGetRunUnknown(t *testing.T) {
	s := openTest(t)
	r, err := s.GetRun(context.Background(), "run_missing")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestListRunsFilter(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, "run_a", "https://a.example.com", 1))
	require.NoError(t, s.StartRun(ctx, "run_b", "https://b.example.com", 1))
	require.NoError(t, s.CompleteRun(ctx, "run_a", RunOutcome{Status: "success", Succeeded: 1, Attempts: 1}))

	all, err := s.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running, err := s.ListRuns(ctx, "running", 10)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "run_b", running[0].ID)
}

func TestCapturesAndAggregate(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, "run_1", "https://shop.example.com", 2))
	require.NoError(t, s.AddCapture(ctx, "run_1", "screenshot", "/a/shot.png", 1024))
	require.NoError(t, s.AddCapture(ctx, "run_1", "dom", "/a/dom.html", 2048))
	require.NoError(t, s.CompleteRun(ctx, "run_1", RunOutcome{
		Status: "failed", Failed: 2, Attempts: 5, Retries: 3, ArtifactDir: "/a",
	}))

	caps, err := s.RunCaptures(ctx, "run_1")
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, "screenshot", caps[0].Kind)

	totals, err := s.Aggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.TotalRuns)
	assert.Equal(t, 5, totals.TotalAttempts)
	assert.Equal(t, 3, totals.TotalRetries)
	assert.Equal(t, 2, totals.TotalCaptures)
	assert.Equal(t, 3072, totals.CaptureBytes)
}
