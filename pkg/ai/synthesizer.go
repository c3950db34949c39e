package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sw33tLie/metropolis/internal/utils"
	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// Config controls how the itinerary synthesizer behaves.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Endpoint    string
	Temperature float32
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// PlanInput is everything the model is given to build a schedule.
type PlanInput struct {
	Events      []itinerary.RawEvent
	Dates       []string
	City        string
	State       string
	Budget      itinerary.Budget
	Preferences string
	Excluded    []string
}

// Synthesizer turns candidate events into a schedule through a language model.
type Synthesizer interface {
	PlanItinerary(ctx context.Context, in PlanInput) ([]itinerary.Entry, error)
}

const (
	defaultProvider    = "gemini"
	defaultTimeout     = 45 * time.Second
	defaultTemperature = 0.4
)

// NewSynthesizer builds a concrete Synthesizer implementation based on the provided config.
func NewSynthesizer(ctx context.Context, cfg Config) (Synthesizer, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	var (
		llm completer
		err error
	)
	switch cfg.Provider {
	case "gemini":
		llm, err = newGeminiCompleter(ctx, cfg)
	case "openai":
		llm, err = newOpenAICompleter(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &synthesizer{provider: cfg.Provider, llm: llm, temperature: cfg.Temperature}, nil
}

// completer is a single prompt/response exchange with a model that has been
// asked for a JSON answer.
type completer interface {
	complete(ctx context.Context, system, prompt string, temperature float32) (string, error)
}

type synthesizer struct {
	provider    string
	llm         completer
	temperature float32
}

func (s *synthesizer) PlanItinerary(ctx context.Context, in PlanInput) ([]itinerary.Entry, error) {
	if len(in.Dates) == 0 {
		return nil, errors.New("itinerary synthesis requires at least one date")
	}

	utils.Log.Debugf("[ai] planning %s, %s on %v with %d candidate events (%s)", in.City, in.State, in.Dates, len(in.Events), s.provider)

	prompt, err := BuildPrompt(in)
	if err != nil {
		return nil, err
	}

	raw, err := s.llm.complete(ctx, systemPrompt, prompt, s.temperature)
	if err != nil {
		return nil, fmt.Errorf("%s synthesis failed: %w", s.provider, err)
	}

	entries, err := ParseEntries(raw, in.Dates)
	if err != nil {
		utils.Log.Debugf("[ai] rejected %s response: %s", s.provider, raw)
		return nil, err
	}

	out := Finalize(entries, in.Excluded, in.Dates[0])
	utils.Log.Debugf("[ai] %s returned %d entries, %d kept", s.provider, len(entries), len(out))
	return out, nil
}
