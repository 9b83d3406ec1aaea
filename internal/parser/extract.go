package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// Field names in the completion block.
const (
	FieldAction    = "ACTION"
	FieldTitle     = "TITLE"
	FieldDate      = "DATE"
	FieldStartTime = "START_TIME"
	FieldEndTime   = "END_TIME"
	FieldLocation  = "LOCATION"
)

// emptyValue is how the model marks a field it could not fill.
const emptyValue = "empty"

var fieldPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, name := range []string{FieldAction, FieldTitle, FieldDate, FieldStartTime, FieldEndTime, FieldLocation} {
		fieldPatterns[name] = regexp.MustCompile(`(?m)^[ \t]*` + name + `:[ \t]*(.*)$`)
	}
}

// Extractor turns a completion block into an EventRequest.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor. A nil logger discards diagnostics.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{logger: logger}
}

// Extract parses block using the default extractor.
func Extract(block, raw string) models.EventRequest {
	return NewExtractor(nil).Extract(block, raw)
}

// Extract reads the FIELD: value lines of block into a request. raw is the
// user's original text and is carried on every result.
func (x *Extractor) Extract(block, raw string) (req models.EventRequest) {
	defer func() {
		if r := recover(); r != nil {
			req = models.FailedRequest(fmt.Sprintf("Error parsing AI response: %v", r), raw)
		}
	}()

	req = models.EventRequest{
		ActionType: parseAction(field(block, FieldAction)),
		Title:      field(block, FieldTitle),
		Location:   field(block, FieldLocation),
		RawQuery:   raw,
	}

	if s := field(block, FieldDate); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			x.logger.Warn("Failed to parse date", "value", s, "error", err)
		} else {
			req.Date = &d
		}
	}
	req.StartTime = x.timeField(block, FieldStartTime)
	req.EndTime = x.timeField(block, FieldEndTime)

	if req.ActionType == models.ActionCreate && req.Title == "" {
		return models.FailedRequest("Could not extract event title", raw)
	}
	if req.Date == nil && (req.ActionType == models.ActionCreate || req.ActionType == models.ActionView) {
		return models.FailedRequest("Could not extract valid date", raw)
	}

	req.Successful = true
	return req
}

func (x *Extractor) timeField(block, name string) *models.TimeOfDay {
	s := field(block, name)
	if s == "" {
		return nil
	}
	t, err := models.ParseTimeOfDay(s)
	if err != nil {
		x.logger.Warn("Failed to parse time", "field", name, "value", s, "error", err)
		return nil
	}
	return &t
}

// field returns the trimmed value of the first line for name, or "" when the
// line is missing, blank or marked empty.
func field(block, name string) string {
	m := fieldPatterns[name].FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	v := strings.TrimSpace(m[1])
	if v == emptyValue {
		return ""
	}
	return v
}

func parseAction(s string) models.ActionType {
	switch strings.ToUpper(s) {
	case string(models.ActionView):
		return models.ActionView
	case string(models.ActionDelete):
		return models.ActionDelete
	case string(models.ActionUpdate):
		return models.ActionUpdate
	default:
		return models.ActionCreate
	}
}
