// Package tools dispatches remote function calls from the live session to
// local handlers and builds the correlated response batch.
package tools

import (
	"fmt"
	"log/slog"

	"github.com/MrWong99/sketchmentor/internal/canvas"
	"github.com/MrWong99/sketchmentor/pkg/live"
)

// HighlightToolName is the function the mentor model calls to point at a
// region of the student's sketch.
const HighlightToolName = "draw_highlight_box"

// HighlightToolDefinition describes the highlight function for the session
// setup message.
func HighlightToolDefinition() live.ToolDefinition {
	return live.ToolDefinition{
		Name: HighlightToolName,
		Description: "Draws a temporary highlight box on the student's drawing board " +
			"to point at a specific region. Coordinates use a 0-1000 space on both axes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x": map[string]any{
					"type":        "number",
					"description": "Horizontal center of the box, 0 (left) to 1000 (right).",
				},
				"y": map[string]any{
					"type":        "number",
					"description": "Vertical center of the box, 0 (top) to 1000 (bottom).",
				},
				"size": map[string]any{
					"type":        "number",
					"description": "Side length of the box in the same 0-1000 space.",
				},
			},
			"required": []string{"x", "y", "size"},
		},
	}
}

// Dispatcher routes function calls to their handlers. Every call in a batch
// gets a correlated response, success or not; the model blocks its turn until
// the full batch is answered.
type Dispatcher struct {
	board  *canvas.Board
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher drawing highlights on board.
func NewDispatcher(board *canvas.Board, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{board: board, logger: logger}
}

// Dispatch executes every call and returns one response per call, in order.
// Unknown functions and invalid arguments produce error responses rather than
// failing the batch.
func (d *Dispatcher) Dispatch(calls []live.FunctionCall) []live.FunctionResponse {
	responses := make([]live.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		responses = append(responses, live.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: d.handle(call),
		})
	}
	return responses
}

func (d *Dispatcher) handle(call live.FunctionCall) map[string]any {
	switch call.Name {
	case HighlightToolName:
		return d.highlight(call.Args)
	default:
		d.logger.Warn("unknown tool call", "name", call.Name, "id", call.ID)
		return map[string]any{"error": fmt.Sprintf("unknown function: %s", call.Name)}
	}
}

func (d *Dispatcher) highlight(args map[string]any) map[string]any {
	x, okX := number(args, "x")
	y, okY := number(args, "y")
	size, okSize := number(args, "size")
	if !okX || !okY || !okSize {
		return map[string]any{"error": "x, y and size must be numbers"}
	}
	if err := d.board.Highlight(x, y, size); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"result": "ok"}
}

// number reads a JSON numeric argument. Decoded JSON numbers arrive as
// float64; integers from hand-built maps are accepted too.
func number(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
