package dto

import "github.com/google/uuid"

// EventResponse is one event in GET /v1/photographer/events. Date is YYYY-MM-DD.
type EventResponse struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Date     string    `json:"date"`
}

type EventStatisticsResponse struct {
	TotalEvents  int `json:"totalEvents"`
	ActiveEvents int `json:"activeEvents"`
	FutureEvents int `json:"futureEvents"`
}

type RegisterEventRequest struct {
	EventCode string `json:"event_code"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
