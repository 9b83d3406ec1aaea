// Package parser turns natural-language calendar requests into structured
// EventRequests using a hosted text-completion model.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Completer sends a prompt to a text-completion service and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Parser converts user input into an EventRequest via a Completer.
type Parser struct {
	completer Completer
	extractor *Extractor
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides the time source used for "today" in the prompt.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// New creates a parser. A nil completer yields a parser that reports itself
// unavailable and fails every request.
func New(completer Completer, logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Parser{
		completer: completer,
		extractor: NewExtractor(logger),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available reports whether a completion backend is configured.
func (p *Parser) Available() bool {
	return p != nil && p.completer != nil
}

// ParseNaturalLanguage asks the model to structure input and extracts the
// result. It never returns an error; failures are reported on the request.
func (p *Parser) ParseNaturalLanguage(ctx context.Context, input string) models.EventRequest {
	if !p.Available() {
		return models.FailedRequest("AI service not available", input)
	}

	text, err := p.completer.Complete(ctx, BuildPrompt(input, p.now()))
	if err != nil {
		p.logger.Error("AI parsing failed", "error", err)
		return models.FailedRequest("Failed to parse input: "+err.Error(), input)
	}

	req := p.extractor.Extract(text, input)
	p.logger.Debug("Parsed request", "summary", req.Summary())
	return req
}

// BuildPrompt renders the instruction prompt for input relative to now.
func BuildPrompt(input string, now time.Time) string {
	today := models.DateOf(now)
	return fmt.Sprintf(promptTemplate, today, input, today.AddDays(1))
}

const promptTemplate = `You are a calendar assistant. Parse the following user input into calendar event details.
Today's date is: %s

User input: "%s"

Extract the following information and respond ONLY in this exact format:
ACTION: [CREATE/VIEW/DELETE/UPDATE]
TITLE: [event title]
DATE: [YYYY-MM-DD format]
START_TIME: [HH:MM in 24-hour format]
END_TIME: [HH:MM in 24-hour format, or leave empty]
LOCATION: [location or leave empty]

Rules:
- If no end time specified, leave END_TIME empty (default will be 1 hour after start)
- Convert relative dates like "tomorrow", "next Monday" to actual dates
- Convert 12-hour time (2 PM) to 24-hour format (14:00)
- If date is ambiguous, use the nearest future occurrence
- If action is unclear, default to CREATE
- Keep title concise but descriptive

Example inputs and outputs:
Input: "Meeting with John tomorrow at 2 PM"
ACTION: CREATE
TITLE: Meeting with John
DATE: %s
START_TIME: 14:00
END_TIME:
LOCATION:

Input: "What's on my calendar next Monday?"
ACTION: VIEW
TITLE:
DATE: [next Monday's date]
START_TIME:
END_TIME:
LOCATION:

Now parse the user input above.
`
