package extract

import (
	"context"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileTransform(t *testing.T, src string) *goja.Program {
	t.Helper()
	prog, err := goja.Compile("transform", src, true)
	require.NoError(t, err)
	return prog
}

func TestTransformParsesNumber(t *testing.T) {
	tr := NewTransformer()
	v, err := tr.Apply(context.Background(),
		compileTransform(t, `parseFloat(raw.replace(/[^0-9.]/g, ""))`), "$1,299.50")
	require.NoError(t, err)
	n, ok := v.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 1299.5, n)
}

func TestTransformStructuredResult(t *testing.T) {
	tr := NewTransformer()
	v, err := tr.Apply(context.Background(),
		compileTransform(t, `raw.trim().split(/\s+/)`), "  in   stock ")
	require.NoError(t, err)
	arr, ok := v.AsArray()
	require.True(t, ok)
	require.Len(t, arr, 2)
	assert.Equal(t, "in", arr[0].Text())
	assert.Equal(t, "stock", arr[1].Text())
}

func TestTransformUndefinedBecomesNull(t *testing.T) {
	tr := NewTransformer()
	v, err := tr.Apply(context.Background(), compileTransform(t, `undefined`), "x")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestTransformRuntimeError(t *testing.T) {
	tr := NewTransformer()
	_, err := tr.Apply(context.Background(), compileTransform(t, `raw.noSuchMethod()`), "x")
	assert.Error(t, err)
}

func TestTransformTimeout(t *testing.T) {
	tr := NewTransformer()
	tr.timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := tr.Apply(context.Background(), compileTransform(t, `while (true) {}`), "x")
	assert.ErrorIs(t, err, ErrTransformTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTransformPoolRecoversAfterTimeout(t *testing.T) {
	tr := NewTransformer()
	tr.timeout = 20 * time.Millisecond

	_, err := tr.Apply(context.Background(), compileTransform(t, `while (true) {}`), "x")
	require.ErrorIs(t, err, ErrTransformTimeout)

	// every pooled runtime, the interrupted one included, serves cleanly
	prog := compileTransform(t, `raw.toUpperCase()`)
	for i := 0; i < transformPoolSize+1; i++ {
		v, err := tr.Apply(context.Background(), prog, "ok")
		require.NoError(t, err)
		assert.Equal(t, "OK", v.Text())
	}
}

func TestTransformPoolReuse(t *testing.T) {
	tr := NewTransformer()
	prog := compileTransform(t, `raw.toUpperCase()`)
	for i := 0; i < transformPoolSize*3; i++ {
		v, err := tr.Apply(context.Background(), prog, "abc")
		require.NoError(t, err)
		assert.Equal(t, "ABC", v.Text())
	}
}
