package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = old[0], old[1], old[2] })

	Version, Commit, Date = "v1.2.3", "abc1234", "2025-01-01"
	assert.Equal(t, "voicecab v1.2.3 (commit abc1234, built 2025-01-01)", String())
}
