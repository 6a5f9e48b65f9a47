package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagesentry/pagesentry/internal/artifacts"
	"github.com/pagesentry/pagesentry/internal/extract"
	"github.com/pagesentry/pagesentry/internal/store"
)

// testPage is an in-memory evaluator that also serves as an artifact source.
type testPage struct {
	url      string
	title    string
	text     string
	elements map[string]string

	captured bool
}

func newTestPage() *testPage {
	return &testPage{
		url:      "https://shop.example.com/product/42",
		title:    "Widget Deluxe - Example Shop",
		elements: map[string]string{},
	}
}

func (p *testPage) URL(ctx context.Context) (string, error)   { return p.url, nil }
func (p *testPage) Title(ctx context.Context) (string, error) { return p.title, nil }
func (p *testPage) Text(ctx context.Context) (string, error)  { return p.text, nil }

func (p *testPage) Query(ctx context.Context, selector, field string) (string, bool, error) {
	v, ok := p.elements[selector]
	return v, ok, nil
}

func (p *testPage) Count(ctx context.Context, selector string) (int, error) {
	if _, ok := p.elements[selector]; ok {
		return 1, nil
	}
	return 0, nil
}

func (p *testPage) Screenshot(ctx context.Context) ([]byte, error) {
	p.captured = true
	return []byte("png"), nil
}

func (p *testPage) PDF(ctx context.Context) ([]byte, error) { return []byte("pdf"), nil }

func (p *testPage) DOM(ctx context.Context) (string, error) { return "<html></html>", nil }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunAllStepsSucceed(t *testing.T) {
	page := newTestPage()
	page.elements["#title"] = "Widget Deluxe"
	page.elements[".price"] = "129.99"

	runner := NewRunner(extract.NewEngine())
	report, err := runner.Run(context.Background(), []Step{
		{Key: "title", Required: true, Request: extract.Request{Chain: []string{"#title"}}},
		{Key: "price", Required: true, Request: extract.Request{Chain: []string{".price"}}},
	}, page)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, report.Status)
	assert.True(t, report.Passed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "Widget Deluxe", report.Extracted["title"].Text())
	assert.Equal(t, "129.99", report.Extracted["price"].Text())
	assert.NotEmpty(t, report.RunID)
}

func TestRunScenarioMixedOutcomes(t *testing.T) {
	// required title resolves primary, optional reviews miss entirely,
	// required price resolves via fallback selector
	page := newTestPage()
	page.elements["#title"] = "Widget Deluxe"
	page.elements["span.amount"] = "129.99"

	runner := NewRunner(extract.NewEngine())
	report, err := runner.Run(context.Background(), []Step{
		{Key: "title", Required: true, Request: extract.Request{Chain: []string{"#title"}}},
		{Key: "reviews", Required: false, Request: extract.Request{Chain: []string{".reviews"}}},
		{Key: "price", Required: true, Request: extract.Request{Chain: []string{".price", "span.amount"}}},
	}, page)
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, report.Status)
	assert.False(t, report.Passed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Steps, 3)
	assert.True(t, report.Steps[2].WasFallback)
	assert.NotContains(t, report.Extracted, "reviews")
}

func TestRunRequiredFailureCapturesArtifacts(t *testing.T) {
	page := newTestPage()
	s := testStore(t)
	capturer := artifacts.NewCapturer(artifacts.Config{BaseDir: t.TempDir()}, nil)

	runner := NewRunner(extract.NewEngine(),
		WithStore(s),
		WithCapturer(capturer))
	report, err := runner.Run(context.Background(), []Step{
		{Key: "price", Required: true, Request: extract.Request{Chain: []string{".price"}}},
	}, page)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Status)
	assert.True(t, page.captured)
	assert.NotEmpty(t, report.ArtifactDir)

	caps, err := s.RunCaptures(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, caps, 3)
}

func TestRunOptionalFailureSkipsCapture(t *testing.T) {
	page := newTestPage()
	page.elements["#title"] = "Widget"
	capturer := artifacts.NewCapturer(artifacts.Config{BaseDir: t.TempDir()}, nil)

	runner := NewRunner(extract.NewEngine(), WithCapturer(capturer))
	report, err := runner.Run(context.Background(), []Step{
		{Key: "title", Required: true, Request: extract.Request{Chain: []string{"#title"}}},
		{Key: "reviews", Required: false, Request: extract.Request{Chain: []string{".reviews"}}},
	}, page)
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, report.Status)
	assert.False(t, page.captured)
	assert.Empty(t, report.ArtifactDir)
}

func TestRunLearnsSelectors(t *testing.T) {
	page := newTestPage()
	page.elements["span.amount"] = "129.99"
	s := testStore(t)

	runner := NewRunner(extract.NewEngine(), WithStore(s))
	_, err := runner.Run(context.Background(), []Step{
		{Key: "price", Required: true, Request: extract.Request{Chain: []string{".price", "span.amount"}}},
	}, page)
	require.NoError(t, err)

	cached, err := s.Recall(context.Background(), "price", page.url)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "span.amount", cached.Selector)
	assert.Equal(t, 1, cached.SuccessCount)
}

func TestRunUsesCachedSelectorFirst(t *testing.T) {
	page := newTestPage()
	page.elements[".learned-price"] = "129.99"
	s := testStore(t)
	require.NoError(t, s.Learn(context.Background(), "price", ".learned-price", page.url))

	runner := NewRunner(extract.NewEngine(), WithStore(s))
	report, err := runner.Run(context.Background(), []Step{
		{Key: "price", Required: true, Request: extract.Request{Chain: []string{".price"}}},
	}, page)
	require.NoError(t, err)

	require.Len(t, report.Steps, 1)
	assert.True(t, report.Steps[0].Success)
	assert.Equal(t, ".learned-price", report.Steps[0].SelectorUsed)
	// cached selector sits at chain head, so this counts as a primary hit
	assert.Equal(t, extract.MethodPrimary, report.Steps[0].Method)
}

func TestRunRecordsCachedSelectorFailure(t *testing.T) {
	page := newTestPage()
	page.elements[".price"] = "129.99"
	s := testStore(t)
	require.NoError(t, s.Learn(context.Background(), "price", ".stale-price", page.url))

	runner := NewRunner(extract.NewEngine(), WithStore(s))
	_, err := runner.Run(context.Background(), []Step{
		{Key: "price", Required: true, Request: extract.Request{Chain: []string{".price"}}},
	}, page)
	require.NoError(t, err)

	cached, err := s.Recall(context.Background(), "price", page.url)
	require.NoError(t, err)
	require.NotNil(t, cached)
	// replaced by the selector that actually worked, with the miss recorded
	assert.Equal(t, ".price", cached.Selector)
	assert.Equal(t, 1, cached.FailCount)
}

func TestRunStaleCachedSelectorKeepsPrimaryScoring(t *testing.T) {
	page := newTestPage()
	page.elements["#title"] = "Widget"
	s := testStore(t)
	require.NoError(t, s.Learn(context.Background(), "title", ".old-title", page.url))

	runner := NewRunner(extract.NewEngine(), WithStore(s))
	report, err := runner.Run(context.Background(), []Step{
		{Key: "title", Required: true, Request: extract.Request{Chain: []string{"#title"}}},
	}, page)
	require.NoError(t, err)

	// the stale cached selector shifted the executed chain, but the step's
	// own head selector matched; the outcome is scored against the step's
	// chain, not the augmented one
	require.Len(t, report.Steps, 1)
	sr := report.Steps[0]
	assert.Equal(t, "#title", sr.SelectorUsed)
	assert.Equal(t, extract.MethodPrimary, sr.Method)
	assert.False(t, sr.WasFallback)
	assert.InDelta(t, extract.ConfidencePrimary, sr.Confidence, 0.0001)
	assert.Equal(t, StatusSuccess, report.Status)
}

func TestRunStaleCachedSelectorRescoresDeepMatch(t *testing.T) {
	page := newTestPage()
	page.elements["h1"] = "Widget"
	s := testStore(t)
	require.NoError(t, s.Learn(context.Background(), "title", ".old-title", page.url))

	runner := NewRunner(extract.NewEngine(), WithStore(s))
	report, err := runner.Run(context.Background(), []Step{
		{Key: "title", Required: true, Request: extract.Request{Chain: []string{"#title", "h1"}}},
	}, page)
	require.NoError(t, err)

	require.Len(t, report.Steps, 1)
	sr := report.Steps[0]
	assert.Equal(t, "h1", sr.SelectorUsed)
	assert.Equal(t, extract.MethodFallback, sr.Method)
	assert.True(t, sr.WasFallback)
	// index 1 of the step's chain, not index 2 of the augmented one
	assert.InDelta(t, 0.85, sr.Confidence, 0.0001)
}

func TestStepWaitTimeoutDefaulted(t *testing.T) {
	compiled, err := compileSteps([]Step{
		{Key: "title", Request: extract.Request{Chain: []string{"#title"}}, WaitFor: []string{"#title"}},
		{Key: "price", Request: extract.Request{Chain: []string{".price"}}, WaitFor: []string{".price"}, WaitTimeout: time.Second},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultWaitTimeout, compiled[0].WaitTimeout)
	assert.Equal(t, time.Second, compiled[1].WaitTimeout)
}

func TestRunWaitForNeverAppearsStillCompletes(t *testing.T) {
	page := newTestPage()
	page.elements["#title"] = "Widget"

	runner := NewRunner(extract.NewEngine())
	report, err := runner.Run(context.Background(), []Step{
		{
			Key:         "title",
			Required:    true,
			Request:     extract.Request{Chain: []string{"#title"}},
			WaitFor:     []string{"#never-appears"},
			WaitTimeout: 50 * time.Millisecond,
		},
	}, page)
	require.NoError(t, err)

	// the wait times out instead of hanging; extraction still proceeds
	assert.Equal(t, StatusSuccess, report.Status)
}

func TestRunRecordsRunHistory(t *testing.T) {
	page := newTestPage()
	page.elements["#title"] = "Widget"
	s := testStore(t)

	runner := NewRunner(extract.NewEngine(), WithStore(s))
	report, err := runner.Run(context.Background(), []Step{
		{Key: "title", Required: true, Request: extract.Request{Chain: []string{"#title"}}},
	}, page)
	require.NoError(t, err)

	rec, err := s.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "success", rec.Status)
	assert.Equal(t, 1, rec.Succeeded)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 0, rec.Retries)
	assert.NotEmpty(t, rec.EndTime)
}

func TestRunRejectsBadConfiguration(t *testing.T) {
	runner := NewRunner(extract.NewEngine())

	_, err := runner.Run(context.Background(), nil, newTestPage())
	assert.Error(t, err)

	_, err = runner.Run(context.Background(), []Step{
		{Key: "a", Request: extract.Request{Chain: []string{"#a"}}},
		{Key: "a", Request: extract.Request{Chain: []string{"#b"}}},
	}, newTestPage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")

	_, err = runner.Run(context.Background(), []Step{
		{Key: "bad", Request: extract.Request{Chain: []string{"#a"}, FallbackPattern: "("}},
	}, newTestPage())
	assert.Error(t, err)
}

func TestRunDegradedPolicy(t *testing.T) {
	page := newTestPage()
	page.elements["h1"] = "Widget"

	steps := []Step{
		{Key: "title", Required: true, Request: extract.Request{Chain: []string{"#title", "h1"}}},
	}

	strict := NewRunner(extract.NewEngine())
	report, err := strict.Run(context.Background(), steps, page)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.False(t, report.Passed)

	lenient := NewRunner(extract.NewEngine(), WithPolicy(Policy{DegradedIsSuccess: true}))
	report, err = lenient.Run(context.Background(), steps, page)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.Passed)
}

var errBrokenPage = errors.New("page gone")

type brokenPage struct{ *testPage }

func (b *brokenPage) URL(ctx context.Context) (string, error) { return "", errBrokenPage }

func TestRunEvaluatorFailure(t *testing.T) {
	runner := NewRunner(extract.NewEngine())
	_, err := runner.Run(context.Background(), []Step{
		{Key: "title", Request: extract.Request{Chain: []string{"#t"}}},
	}, &brokenPage{newTestPage()})
	assert.ErrorIs(t, err, errBrokenPage)
}
