package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedClient replays canned responses in order. It records every prompt.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	Prompts   []string
}

// ScriptedResponse is one canned reply or failure.
type ScriptedResponse struct {
	Text string
	Err  error
}

func NewScriptedClient(responses ...ScriptedResponse) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Reply is shorthand for a successful response.
func Reply(text string) ScriptedResponse { return ScriptedResponse{Text: text} }

// Fail is shorthand for an error response.
func Fail(err error) ScriptedResponse { return ScriptedResponse{Err: err} }

func (s *ScriptedClient) Name() string { return "scripted" }

func (s *ScriptedClient) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.responses) == 0 {
		return "", errors.New("scripted client has no responses left")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next.Text, next.Err
}

// Calls returns how many prompts have been sent.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}
