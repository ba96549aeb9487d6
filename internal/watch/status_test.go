package watch

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	s := NewStatus()
	s.Record(Result{Binding: "styles"})
	s.Record(Result{Binding: "markup", Err: stderrors.New("boom")})
	s.Record(Result{Binding: "markup"})

	results := s.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "markup", results[0].Binding)
	assert.Equal(t, 2, results[0].Runs)
	assert.Equal(t, 1, results[0].Failures)
	assert.True(t, results[0].OK())
	assert.Equal(t, "styles", results[1].Binding)
}
