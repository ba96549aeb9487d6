package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/watch"
)

func renderStatus(t *testing.T, results []watch.Result, clients int) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, statusPage(results, clients).Render(context.Background(), &sb))
	return sb.String()
}

func TestStatusPageWithoutRuns(t *testing.T) {
	page := renderStatus(t, nil, 1)

	assert.True(t, strings.HasPrefix(page, "<!doctype html>"))
	assert.Contains(t, page, "<p>1 live-reload client connected</p>")
	assert.Contains(t, page, "No rebuilds yet.")
	assert.NotContains(t, page, "<table>")
}

func TestStatusPageRows(t *testing.T) {
	results := []watch.Result{
		{Binding: "styles", Trigger: "src/sass/a.sass", Duration: 1500 * time.Microsecond, Runs: 3},
		{Binding: "scripts", Trigger: "src/js/a.js", Runs: 2, Failures: 2, Err: errors.New("lint <failed>")},
	}
	page := renderStatus(t, results, 0)

	assert.Contains(t, page, "<p>0 live-reload clients connected</p>")
	assert.Contains(t, page, `<tr><td>styles</td><td class="ok">ok</td><td>src/sass/a.sass</td>`)
	assert.Contains(t, page, "<td>2ms</td><td>3</td><td>0</td></tr>")
	assert.Contains(t, page, `<td class="failed">lint &lt;failed&gt;</td>`)
	assert.Equal(t, 2, strings.Count(page, "<tr><td>"))
}
