package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/varyops/vary/internal/llm"
)

// ErrNoTerminalPayload reports a run that ended without a parsable closing
// JSON object and without any commit landing on the working branch.
var ErrNoTerminalPayload = errors.New("no terminal payload and no commits landed")

// TerminalPayload is the model's closing JSON object describing the
// completed integration.
type TerminalPayload struct {
	Status            string `json:"status"`
	CommitMessage     string `json:"commitMessage"`
	PRTitle           string `json:"prTitle"`
	PRDescription     string `json:"prDescription"`
	VerificationNotes string `json:"verificationNotes"`
}

// ParseTerminalPayload extracts the first JSON object from text and decodes
// it as a terminal payload. Returns an error when no object is present, the
// object is not valid JSON, or its status field is not "done".
func ParseTerminalPayload(text string) (*TerminalPayload, error) {
	span, ok := llm.FirstJSONObject(text)
	if !ok {
		return nil, errors.New("no JSON object in final response")
	}
	if !gjson.Valid(span) {
		return nil, errors.New("final response JSON is malformed")
	}
	if status := gjson.Get(span, "status").String(); status != "done" {
		return nil, fmt.Errorf("final response status %q, want \"done\"", status)
	}
	var payload TerminalPayload
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return nil, fmt.Errorf("decoding terminal payload: %w", err)
	}
	return &payload, nil
}

// SynthesizeTerminalPayload builds the fallback payload used when commits
// landed but the model never produced a usable closing object.
func SynthesizeTerminalPayload(experimentName string) *TerminalPayload {
	return &TerminalPayload{
		Status:            "done",
		CommitMessage:     fmt.Sprintf("Implement %s experiment", experimentName),
		PRTitle:           fmt.Sprintf("Implement %s experiment", experimentName),
		PRDescription:     fmt.Sprintf("Automated integration of the %s A/B experiment.", experimentName),
		VerificationNotes: "Final summary was synthesized; committed changes were not described by the model.",
	}
}
