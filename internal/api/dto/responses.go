package dto

import "time"

type HealthResponse struct {
	Status    string    `json:"status"`
	Bus       string    `json:"bus"`
	Streams   int       `json:"streams"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse segue o formato de um Result com falha para o front
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
