package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStampedVersion(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "v1.2.3", "0123456789abcdef"
	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())
	assert.True(t, strings.HasPrefix(GetDetailedVersion(), "Version: v1.2.3\nCommit: 0123456789abcdef"))

	Version = "dev"
	assert.Equal(t, "dev-0123456", GetShortVersion())
}

func TestParseTime(t *testing.T) {
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), parseTime("2024-05-01T12:00:00Z"))
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("").IsZero())
}
