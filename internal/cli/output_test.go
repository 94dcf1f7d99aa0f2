package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/checkout"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"productId": "42"}
	err := formatter.Error("E007", "stock insufficient", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E007", resp.Error.Code)
	assert.Equal(t, "stock insufficient", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "something broke", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]: something broke")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("E001", "something broke", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details:")
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
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "cart")

			assert.Empty(t, out.String(), "verbose output never goes to stdout")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Processing cart")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		exitCode int
		errCode  string
		message  string
	}{
		{
			name:     "transport",
			err:      &api.Error{Kind: api.KindTransport, Op: "GET /product/all", Err: errors.New("refused")},
			exitCode: ExitFailure,
			errCode:  ErrCodeTransport,
			message:  "cannot reach backend: refused",
		},
		{
			name:     "malformed",
			err:      &api.Error{Kind: api.KindMalformed, Op: "GET /product/all"},
			exitCode: ExitFailure,
			errCode:  ErrCodeMalformed,
			message:  "unparseable response",
		},
		{
			name:     "rejected",
			err:      &api.Error{Kind: api.KindRejected, Op: "GET /product/9", Code: 404, Message: "product not found"},
			exitCode: ExitFailure,
			errCode:  ErrCodeRejected,
			message:  "product not found",
		},
		{
			name:     "no selection",
			err:      &checkout.Error{Stage: checkout.StateValidating, Message: "no items selected", Reason: checkout.ErrNoSelection},
			exitCode: ExitFailure,
			errCode:  ErrCodeNoSelection,
			message:  "no items selected",
		},
		{
			name:     "checkout stage failure",
			err:      &checkout.Error{Stage: checkout.StateCreatingPayment, Message: "payment could not be started", Reason: checkout.ErrPaymentFailed},
			exitCode: ExitFailure,
			errCode:  ErrCodeCheckout,
			message:  "payment could not be started",
		},
		{
			name:     "in progress",
			err:      fmt.Errorf("run: %w", checkout.ErrInProgress),
			exitCode: ExitFailure,
			errCode:  ErrCodeInProgress,
		},
		{
			name:     "command error",
			err:      NewExitError(ExitCommandError, "bad flag"),
			exitCode: ExitCommandError,
			errCode:  ErrCodeGeneric,
			message:  "bad flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail(tt.err, nil)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.True(t, IsReported(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.errCode, resp.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestOutputFormatter_CommandFail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.CommandFail(ErrCodeStorage, "failed to open cart storage", errors.New("disk full"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, buf.String(), "Error [E004]: failed to open cart storage: disk full")
}

func TestFailNilIsNil(t *testing.T) {
	formatter := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}}
	assert.NoError(t, formatter.Fail(nil, nil))
}
