package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/credcheck/internal/application"
	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/ports"
	"github.com/ahrav/credcheck/internal/testutils"
)

const cliEngine = "clifake"

// prepare registers a fake engine answering text, isolates the environment
// and writes a config selecting that engine.
func prepare(t *testing.T, text string) string {
	t.Helper()
	rec := &testutils.FakeRecognizer{Text: text}
	require.NoError(t, application.DefaultEngineRegistry().Register(cliEngine,
		func(context.Context, application.OCRConfig) (ports.Recognizer, error) { return rec, nil }))

	dir := t.TempDir()
	t.Setenv(application.EnvFileVariable, filepath.Join(dir, "missing.env"))
	for _, name := range []string{
		"CREDCHECK_INFERENCE_PROVIDER", "CREDCHECK_INFERENCE_API_KEY", "GEMINI_API_KEY",
		"CREDCHECK_OCR_ENGINE", "CREDCHECK_EXTRACTION_CONCURRENCY", "CREDCHECK_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}

	cfgPath := filepath.Join(dir, "credcheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\nocr:\n  engine: "+cliEngine+"\n"), 0o600))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVerifyCommand_PrintsResult(t *testing.T) {
	cfgPath := prepare(t, "CERTIFICATE\nID: ABC-123-XYZ")
	cert := testutils.WriteCertificate(t, t.TempDir(), "cert.png", 300, 200)

	out, err := execute(t, "--config", cfgPath, "verify", "-f", cert, "-i", "ABC-123-XYZ", "-t", "Web Development")
	require.NoError(t, err)

	var result domain.VerificationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.CredentialValid)
	assert.False(t, result.Success, "no inference key is configured")
	assert.NotEmpty(t, result.Message)
	assert.Contains(t, result.ExtractedText, "ABC-123-XYZ")
}

func TestVerifyCommand_Strict(t *testing.T) {
	cfgPath := prepare(t, "CERTIFICATE\nID: ABC-123-XYZ")
	cert := testutils.WriteCertificate(t, t.TempDir(), "cert.png", 300, 200)

	_, err := execute(t, "--config", cfgPath, "verify", "-f", cert, "-i", "ABC-123-XYZ", "-t", "Web Development", "--strict")
	assert.ErrorIs(t, err, errRejected)
}

func TestVerifyCommand_ExtractionFailure(t *testing.T) {
	cfgPath := prepare(t, "irrelevant")
	cert := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(cert, []byte("not an image"), 0o600))

	out, err := execute(t, "--config", cfgPath, "verify", "-f", cert, "-i", "ABC", "-t", "Go")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)

	var result domain.VerificationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, application.ExtractionFailedMessage, result.Message)
	assert.NotEmpty(t, result.Error)
}

func TestVerifyCommand_RequiredFlags(t *testing.T) {
	_, err := execute(t, "verify", "-f", "cert.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s)")
}

func TestVerifyCommand_BadConfig(t *testing.T) {
	prepare(t, "")
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("extraction:\n  concurrency: 0\n"), 0o600))

	_, err := execute(t, "--config", bad, "verify", "-f", "c.png", "-i", "A", "-t", "B")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
