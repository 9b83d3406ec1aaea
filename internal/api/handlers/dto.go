package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/calendar-assistant/backend/internal/storage/models"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// NaturalLanguageRequest is the body of the parse and process endpoints.
type NaturalLanguageRequest struct {
	Text string `json:"text"`
}

// ParsedEventDTO is the parse endpoint's view of an EventRequest.
type ParsedEventDTO struct {
	ActionType   string `json:"actionType,omitempty"`
	Title        string `json:"title,omitempty"`
	Date         string `json:"date,omitempty"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
	Location     string `json:"location,omitempty"`
	Successful   bool   `json:"successful"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func parsedEventFromRequest(req models.EventRequest) ParsedEventDTO {
	dto := ParsedEventDTO{
		ActionType:   string(req.ActionType),
		Title:        req.Title,
		Location:     req.Location,
		Successful:   req.Successful,
		ErrorMessage: req.ErrorMessage,
	}
	if req.Date != nil {
		dto.Date = req.Date.String()
	}
	if req.StartTime != nil {
		dto.StartTime = req.StartTime.String()
	}
	if req.EndTime != nil {
		dto.EndTime = req.EndTime.String()
	}
	return dto
}

func parsedEventError(message string) ParsedEventDTO {
	return ParsedEventDTO{ErrorMessage: message}
}

// CreateEventDTO is the body of the create and update endpoints.
type CreateEventDTO struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime,omitempty"`
	Location    string `json:"location,omitempty"`
}

// toEventRequest converts the body into a request for action. Empty fields
// stay unset; malformed dates or times are an error.
func (d CreateEventDTO) toEventRequest(action models.ActionType) (models.EventRequest, error) {
	req := models.EventRequest{
		ActionType:  action,
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Location:    strings.TrimSpace(d.Location),
		Successful:  true,
	}
	if d.Date != "" {
		date, err := models.ParseDate(d.Date)
		if err != nil {
			return models.EventRequest{}, err
		}
		req.Date = &date
	}
	if d.StartTime != "" {
		start, err := models.ParseTimeOfDay(d.StartTime)
		if err != nil {
			return models.EventRequest{}, err
		}
		req.StartTime = &start
	}
	if d.EndTime != "" {
		end, err := models.ParseTimeOfDay(d.EndTime)
		if err != nil {
			return models.EventRequest{}, err
		}
		req.EndTime = &end
	}
	return req, nil
}

// EventResponseDTO is the create endpoint's view of an EventResponse.
type EventResponseDTO struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func eventResponseFrom(resp models.EventResponse) EventResponseDTO {
	return EventResponseDTO{Success: resp.Success, Message: resp.Message, ErrorCode: resp.ErrorCode}
}

// eventResponseError is a failure raised by the HTTP layer itself.
func eventResponseError(message string) EventResponseDTO {
	return EventResponseDTO{Message: message, ErrorCode: "ERROR"}
}

// UserDTO is the public view of a user.
type UserDTO struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Authenticated bool   `json:"authenticated"`
}

func userDTOFrom(u models.User) UserDTO {
	return UserDTO{UserID: u.UserID, Username: u.Username, Email: u.Email, Authenticated: u.Authenticated}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
