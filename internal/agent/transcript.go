package agent

import "github.com/varyops/vary/internal/llm"

// Transcript is the ordered turn sequence sent to the completion service.
// Trimming removes the oldest turns from just after the opening task turn,
// so a tool_result block is never separated from the assistant tool_use
// turn it answers, and the opening turn is never dropped.
type Transcript struct {
	msgs        []llm.Message
	maxMessages int
}

// NewTranscript starts a transcript with the opening user task turn.
func NewTranscript(taskPrompt string, maxMessages int) *Transcript {
	return &Transcript{
		msgs:        []llm.Message{llm.UserText(taskPrompt)},
		maxMessages: maxMessages,
	}
}

// Append adds a turn to the end of the transcript.
func (t *Transcript) Append(m llm.Message) {
	t.msgs = append(t.msgs, m)
}

// Messages returns the current turn sequence.
func (t *Transcript) Messages() []llm.Message {
	return t.msgs
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// Trim drops the oldest turns after the opening turn until the transcript
// fits maxMessages. After each drop, any tool-result user turn left at the
// front is dropped too: its matching tool_use turn is gone, and a result
// turn without its invocation is rejected by the completion service.
func (t *Transcript) Trim() {
	if t.maxMessages <= 0 {
		return
	}
	for len(t.msgs) > t.maxMessages && len(t.msgs) >= 3 {
		t.msgs = append(t.msgs[:1], t.msgs[2:]...)
		for len(t.msgs) >= 2 && t.msgs[1].HasToolResult() {
			t.msgs = append(t.msgs[:1], t.msgs[2:]...)
		}
	}
}
