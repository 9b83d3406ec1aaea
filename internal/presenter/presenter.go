// Package presenter turns interactor results into output for a client.
package presenter

import (
	"fmt"
	"io"
	"sync"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Capture keeps the last response it was given. The HTTP handlers use it to
// build a JSON body.
type Capture struct {
	mu       sync.Mutex
	response *models.EventResponse
	calls    int
}

// NewCapture creates an empty capture presenter.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) PresentSuccess(resp models.EventResponse) { c.set(resp) }

func (c *Capture) PresentFailure(resp models.EventResponse) { c.set(resp) }

func (c *Capture) set(resp models.EventResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = &resp
	c.calls++
}

// Response returns the captured response. ok is false when nothing was presented.
func (c *Capture) Response() (resp models.EventResponse, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.response == nil {
		return models.ErrorResponse("No response was produced", models.ErrCodeUnknown), false
	}
	return *c.response, true
}

// Calls returns how many times the presenter was invoked.
func (c *Capture) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Console writes human readable results.
type Console struct {
	out io.Writer
}

// NewConsole creates a console presenter writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) PresentSuccess(resp models.EventResponse) {
	fmt.Fprintf(c.out, "✓ %s\n", resp.Message)
	if resp.CreatedEvent != nil {
		c.writeEvent(*resp.CreatedEvent)
	}
	for _, e := range resp.Events {
		c.writeEvent(e)
	}
}

func (c *Console) PresentFailure(resp models.EventResponse) {
	fmt.Fprintf(c.out, "✗ %s\n", resp.Message)
	if resp.ErrorCode != "" {
		fmt.Fprintf(c.out, "  code: %s\n", resp.ErrorCode)
	}
}

func (c *Console) writeEvent(e models.Event) {
	line := fmt.Sprintf("  - %s %s %s", e.Date, timeRange(e), e.Title)
	if e.Location != "" {
		line += " @ " + e.Location
	}
	fmt.Fprintln(c.out, line)
}

func timeRange(e models.Event) string {
	switch {
	case e.IsAllDay():
		return "all day"
	case e.EndTime == nil:
		return e.StartTime.String()
	default:
		return e.StartTime.String() + "-" + e.EndTime.String()
	}
}
