package domain

import "time"

// APIEvent: один вызов API от автомобиля/клиента (таблица api_events).
type APIEvent struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	ClientID       string    `json:"client_id"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	Success        bool      `json:"success"`
}

// EventCreate: тело POST /api/events.
type EventCreate struct {
	Endpoint       string   `json:"endpoint" validate:"required"`
	Method         string   `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	StatusCode     int      `json:"status_code" validate:"required,gte=100,lte=599"`
	ResponseTimeMs *float64 `json:"response_time_ms" validate:"required,gte=0"`
	ClientID       string   `json:"client_id" validate:"required"`
	ErrorMessage   *string  `json:"error_message"`
	Success        *bool    `json:"success"`
}

// ToEvent переводит запрос в событие. success по умолчанию true.
func (c EventCreate) ToEvent(now time.Time) APIEvent {
	success := true
	if c.Success != nil {
		success = *c.Success
	}
	var rt float64
	if c.ResponseTimeMs != nil {
		rt = *c.ResponseTimeMs
	}
	return APIEvent{
		Timestamp:      now,
		Endpoint:       c.Endpoint,
		Method:         c.Method,
		StatusCode:     c.StatusCode,
		ResponseTimeMs: rt,
		ClientID:       c.ClientID,
		ErrorMessage:   c.ErrorMessage,
		Success:        success,
	}
}

// ServiceStatus: ответ / и /api/status.
type ServiceStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}
