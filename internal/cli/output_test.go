package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakehouse/internal/catalog"
	"github.com/roach88/bakehouse/internal/ledger"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"db_path": "bakehouse.db"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_FOUND", `item "RYE" not found`, nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, `item "RYE" not found`, resp.Error.Message)
}

func TestOutputFormatter_Emit(t *testing.T) {
	data := map[string]int{"items": 3}
	text := func(w io.Writer) { fmt.Fprintln(w, "3 items") }

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Emit(data, text))
		assert.Equal(t, "3 items\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Emit(data, text))
		assert.JSONEq(t, `{"status":"ok","data":{"items":3}}`, buf.String())
	})
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	err := formatter.Error("VALIDATION", "quantity must be positive", map[string]string{"field": "quantity"})
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [VALIDATION]: quantity must be positive")
	assert.Contains(t, errOut.String(), "Details:")
}

func TestOutputFormatter_Report(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantExit int
		wantCode string
	}{
		{
			name:     "ledger error",
			err:      fmt.Errorf("record: %w", ledger.NewInsufficientStockError("i1", "l1", ledger.Units(2), ledger.Units(-5))),
			wantExit: ExitFailure,
			wantCode: "INSUFFICIENT_STOCK",
		},
		{
			name:     "catalog errors",
			err:      catalog.ValidationErrors{{Field: "items.FLOUR.unit", Message: "unknown unit"}},
			wantExit: ExitFailure,
			wantCode: "VALIDATION",
		},
		{
			name:     "exit failure",
			err:      NewExitError(ExitFailure, "2 of 3 scenarios failed"),
			wantExit: ExitFailure,
			wantCode: "FAILURE",
		},
		{
			name:     "command error",
			err:      errors.New("unknown command"),
			wantExit: ExitCommandError,
			wantCode: "COMMAND_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			assert.Equal(t, tt.wantExit, f.Report(tt.err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Loading %s", "bakery.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Loading bakery.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(ledger.NewValidationError("bad")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open", errors.New("disk"))))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("boom")))
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents ledger.Money
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{350, "$3.50"},
		{123450, "$1,234.50"},
		{-1050, "-$10.50"},
		{100000000, "$1,000,000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMoney(tt.cents), "cents %d", tt.cents)
	}
}
