package react

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FinalAnswerAction is the action name that terminates the loop
const FinalAnswerAction = "final_answer"

// Action is the parsed form of one model decision
type Action struct {
	Action    string                 `json:"action"`
	Arguments map[string]interface{} `json:"arguments"`
	Answer    string                 `json:"answer"`
}

type rawAction struct {
	Action    string                 `json:"action"`
	Arguments map[string]interface{} `json:"arguments"`
	Answer    json.RawMessage        `json:"answer"`
}

// ParseAction parses raw model output into an Action. It accepts bare JSON
// objects and fenced code blocks. The second return is false when the output
// is not a well-formed action; callers degrade to treating the raw text as
// the final answer.
func ParseAction(raw string) (*Action, bool) {
	candidate := stripFences(strings.TrimSpace(raw))

	var parsed rawAction
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, false
	}
	if parsed.Action == "" {
		return nil, false
	}

	action := &Action{
		Action:    parsed.Action,
		Arguments: parsed.Arguments,
		Answer:    decodeAnswer(parsed.Answer),
	}
	if action.Arguments == nil {
		action.Arguments = map[string]interface{}{}
	}

	return action, true
}

// stripFences unwraps ```json ... ``` style fences around the payload
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	body := strings.TrimPrefix(s, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		// Drop the language tag line
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}

	return strings.TrimSpace(body)
}

// decodeAnswer renders the answer field, which models emit as a string,
// object or number, into plain text.
func decodeAnswer(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil {
		return fmt.Sprintf("%v", v)
	}

	return string(raw)
}
