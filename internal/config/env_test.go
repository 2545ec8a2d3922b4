// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("VC_TEST_INT", "42")
	t.Setenv("VC_TEST_BAD_INT", "forty-two")
	t.Setenv("VC_TEST_DUR", "250ms")
	t.Setenv("VC_TEST_BOOL", "yes")
	t.Setenv("VC_TEST_BAD_BOOL", "maybe")
	t.Setenv("VC_TEST_FLOAT", "0.25")
	t.Setenv("VC_TEST_SLICE", " a, ,b ,c")
	t.Setenv("VC_TEST_EMPTY", "")

	assert.Equal(t, 42, ParseInt("VC_TEST_INT", 1))
	assert.Equal(t, 1, ParseInt("VC_TEST_BAD_INT", 1))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("VC_TEST_DUR", time.Second))
	assert.True(t, ParseBool("VC_TEST_BOOL", false))
	assert.True(t, ParseBool("VC_TEST_BAD_BOOL", true))
	assert.InDelta(t, 0.25, ParseFloat("VC_TEST_FLOAT", 1), 1e-9)
	assert.Equal(t, []string{"a", "b", "c"}, ParseStringSlice("VC_TEST_SLICE", nil))
	assert.Equal(t, "fallback", ParseString("VC_TEST_EMPTY", "fallback"))
	assert.Equal(t, "fallback", ParseString("VC_TEST_UNSET_XYZ", "fallback"))
}

func TestIsSensitiveKey(t *testing.T) {
	assert.True(t, isSensitiveKey("DAILY_API_KEY"))
	assert.True(t, isSensitiveKey("VOICECAB_TOKEN"))
	assert.False(t, isSensitiveKey("VOICECAB_API_URL"))
}
