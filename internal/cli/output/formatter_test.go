package output_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
	"github.com/mcpctl/orchestrator/internal/cli/output"
)

func TestFormatError_JSONIncludesKind(t *testing.T) {
	f := output.New(output.FormatJSON, false)
	s := f.FormatError(errors.ClassifiedError{Kind: errors.ErrorKindOffline, Message: "boom", Hint: "try again"})
	assert.Contains(t, s, `"Kind"`)
	assert.Contains(t, s, "offline")
}

func TestFormatError_TextIncludesHint(t *testing.T) {
	f := output.New(output.FormatText, false)
	s := f.FormatError(errors.ClassifiedError{Kind: errors.ErrorKindNotFound, Message: "gone", Hint: "check the id"})
	assert.Contains(t, s, "gone")
	assert.Contains(t, s, "check the id")
}

func TestFormatValue_JSONMarshalsStruct(t *testing.T) {
	f := output.New(output.FormatJSON, false)
	s := f.FormatValue(map[string]string{"status": "ok"})
	assert.Contains(t, s, `"status": "ok"`)
}

func TestFormatServers_JSONMode(t *testing.T) {
	f := output.New(output.FormatJSON, false)
	s := f.FormatServers([]output.ServerRow{{ID: "a", Name: "Server A", Status: "running", ToolCount: 3}})
	assert.Contains(t, s, `"id": "a"`)
}
