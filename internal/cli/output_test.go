package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_SuccessText(t *testing.T) {
	var buf strings.Builder
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Success("done"))
	assert.Equal(t, "done\n", buf.String())
}

func TestOutputFormatter_SuccessJSON(t *testing.T) {
	var buf strings.Builder
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]string{"k": "v"}))
	assert.JSONEq(t, `{"status": "ok", "data": {"k": "v"}}`, buf.String())
}

func TestOutputFormatter_FailureText(t *testing.T) {
	var buf strings.Builder
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Failure(ErrCodeBadInput, "payload is not valid JSON"))
	assert.Equal(t, "error [E002]: payload is not valid JSON\n", buf.String())
}

func TestOutputFormatter_FailureJSON(t *testing.T) {
	var buf strings.Builder
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Failure(ErrCodeNotFound, "no such file"))
	assert.JSONEq(t, `{"status": "error", "error": {"code": "E001", "message": "no such file"}}`, buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, errOut strings.Builder
	f := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errOut, Verbose: true}

	f.VerboseLog("candidates: %d", 3)
	assert.Equal(t, "candidates: 3\n", errOut.String())
	assert.Empty(t, out.String())

	f.Verbose = false
	f.VerboseLog("ignored")
	assert.Equal(t, "candidates: 3\n", errOut.String())
}

func TestFormatErrorLine(t *testing.T) {
	assert.Equal(t, "  1. No schema found in flow or common schema directories\n",
		formatErrorLine(0, "No schema found in flow or common schema directories"))
	assert.Equal(t, "  3. amount must be positive\n", formatErrorLine(2, "amount must be positive"))
}
