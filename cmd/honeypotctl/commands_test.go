package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"honeypot/internal/models"
	"honeypot/internal/scoring"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SCAM_THRESHOLD", "")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", writeConfig(t)}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engagement":{"scam_threshold":0.65}}`), 0o600))
	return path
}

func TestScoreCommand(t *testing.T) {
	out, err := runCommand(t, "", "score", "pay to rahul@upi now or account blocked")
	require.NoError(t, err)

	var report scoreReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.ScamDetected)
	assert.Equal(t, 0.65, report.Threshold)
	assert.GreaterOrEqual(t, report.Confidence, 0.65)
	require.Len(t, report.Messages, 1)
	assert.Contains(t, report.Messages[0].Signals, "kw:blocked")
}

func TestScoreCommandThresholdFlag(t *testing.T) {
	out, err := runCommand(t, "", "--threshold", "0.9", "score", "pay to rahul@upi now or account blocked")
	require.NoError(t, err)

	var report scoreReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 0.9, report.Threshold)
	assert.False(t, report.ScamDetected)
}

func TestScoreCommandReadsStdin(t *testing.T) {
	out, err := runCommand(t, "hello, how are you\n\nsee you at dinner\n", "score")
	require.NoError(t, err)

	var report scoreReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.ScamDetected)
	assert.Len(t, report.Messages, 2)
}

func TestExtractCommand(t *testing.T) {
	out, err := runCommand(t, "", "extract", "send to rahul@upi", "or call +91 98765 43210")
	require.NoError(t, err)

	var intel models.ExtractedIntelligence
	require.NoError(t, json.Unmarshal([]byte(out), &intel))
	assert.Equal(t, []string{"rahul@upi"}, intel.UPIIDs)
	assert.Equal(t, []string{"+919876543210"}, intel.PhoneNumbers)
}

func TestLexiconCommandHonoursOverride(t *testing.T) {
	lex := scoring.DefaultLexicon()
	lex.HighRisk = append(lex.HighRisk, "parcel")
	raw, err := lex.Marshal()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	out, err := runCommand(t, "", "--lexicon", path, "lexicon")
	require.NoError(t, err)

	var got scoring.Lexicon
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Contains(t, got.HighRisk, "parcel")
}

func TestCommandsRequireInput(t *testing.T) {
	_, err := runCommand(t, "   \n", "extract")
	assert.EqualError(t, err, "no messages given")
}
