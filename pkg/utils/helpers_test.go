package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ParseDuration("5m", time.Second))
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("nonsense", time.Second))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 42, ParseValue("42"))
	assert.Equal(t, 1200.5, ParseValue(" 1200.5 "))
	assert.Equal(t, "GALAXY", ParseValue("GALAXY"))
}

func TestNumeric(t *testing.T) {
	assert.Equal(t, 42.0, Numeric(42))
	assert.Equal(t, 42.0, Numeric(int64(42)))
	assert.Equal(t, 1.5, Numeric(float32(1.5)))
	assert.Equal(t, 1200.5, Numeric("1200.5"))
	assert.Equal(t, 0.0, Numeric("not a number"))
	assert.Equal(t, 0.0, Numeric(nil))
}
