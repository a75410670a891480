package llm

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"

	"github.com/aretw0/teller/pkg/ports"
)

// Model generates a completion for a prompt.
type Model = ports.LanguageModel

// Func adapts a plain function to the Model interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Static returns a Model that always answers reply.
func Static(reply string) Model {
	return Func(func(context.Context, string) (string, error) { return reply, nil })
}

// ErrNoJSON is returned by ExtractJSON when no object can be recovered.
var ErrNoJSON = errors.New("no JSON object in model output")

var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON decodes a JSON object from model output into v. Models often
// wrap the object in prose or code fences, so when the whole text does not
// parse the outermost {...} span is tried.
func ExtractJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	match := objectPattern.FindString(text)
	if match == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(match), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
