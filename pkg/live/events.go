package live

// Event is one inbound event from the Gemini Live session, delivered in
// arrival order on [SessionHandle.Events]. The variant set is closed:
// [ToolCallEvent] and [ServerContentEvent].
type Event interface {
	event()
}

// FunctionCall is a single remote function-call request.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse is the correlated result for one [FunctionCall]. ID and
// Name must echo the originating call.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// ToolCallEvent carries the function-call requests of one inbound toolCall
// message. The remote model blocks its turn until every call receives a
// correlated response via [SessionHandle.SendToolResults].
type ToolCallEvent struct {
	Calls []FunctionCall
}

func (ToolCallEvent) event() {}

// ServerContentEvent carries any combination of the serverContent fields of
// one inbound message: synthesized audio, an interruption flag, partial
// transcripts for either direction, and the turn-complete flag.
type ServerContentEvent struct {
	// Audio is the decoded PCM payload (24 kHz s16le mono), or nil.
	Audio []byte

	// Interrupted is set when the model's generation was cut off by new user
	// speech; buffered playback should be discarded.
	Interrupted bool

	// InputTranscript is a partial transcription of the user's speech.
	InputTranscript string

	// OutputTranscript is a partial transcription of the model's speech.
	OutputTranscript string

	// TurnComplete marks the end of the current model turn.
	TurnComplete bool
}

func (ServerContentEvent) event() {}
