package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerminalPayload(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		payload, err := ParseTerminalPayload(`{"status":"done","commitMessage":"Add experiment","prTitle":"Implement cta-test","prDescription":"Adds it.","verificationNotes":"Checked diff."}`)
		require.NoError(t, err)
		assert.Equal(t, "Implement cta-test", payload.PRTitle)
		assert.Equal(t, "Checked diff.", payload.VerificationNotes)
	})

	t.Run("object wrapped in prose and fencing", func(t *testing.T) {
		text := "The integration is complete.\n```json\n{\"status\":\"done\",\"prTitle\":\"Implement cta-test\"}\n```\nLet me know if anything else is needed."
		payload, err := ParseTerminalPayload(text)
		require.NoError(t, err)
		assert.Equal(t, "Implement cta-test", payload.PRTitle)
	})

	t.Run("status other than done is rejected", func(t *testing.T) {
		_, err := ParseTerminalPayload(`{"status":"failed","prTitle":"x"}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"failed"`)
	})

	t.Run("missing status is rejected", func(t *testing.T) {
		_, err := ParseTerminalPayload(`{"prTitle":"x"}`)
		assert.Error(t, err)
	})

	t.Run("no JSON object", func(t *testing.T) {
		_, err := ParseTerminalPayload("All done, ship it.")
		assert.Error(t, err)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := ParseTerminalPayload("")
		assert.Error(t, err)
	})
}

func TestSynthesizeTerminalPayload(t *testing.T) {
	payload := SynthesizeTerminalPayload("cta-test")
	assert.Equal(t, "done", payload.Status)
	assert.Contains(t, payload.PRTitle, "cta-test")
	assert.Contains(t, payload.CommitMessage, "cta-test")
	assert.NotEmpty(t, payload.PRDescription)
	assert.NotEmpty(t, payload.VerificationNotes)
}
