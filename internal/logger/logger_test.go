package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestComponentLoggerFollowsInitialize(t *testing.T) {
	early := GetForComponent("early")

	var buf bytes.Buffer
	InitializeWithWriter("debug", &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	early.Info().Str("vault", "v1").Msg("Harvest finished")
	assert.Contains(t, buf.String(), `"component":"early"`)
	assert.Contains(t, buf.String(), `"vault":"v1"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}
