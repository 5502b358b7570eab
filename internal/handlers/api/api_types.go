package api

import "time"

type APIResponse struct {
	Data  any           `json:"data,omitempty"`
	Error *APIErrorInfo `json:"error,omitempty"`
}

type APIErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{Data: data}
}

func NewErrorResponse(code int, message string) APIResponse {
	return APIResponse{Error: &APIErrorInfo{Code: code, Message: message}}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userInfoResponse struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"isStaff"`
}

type loginSuccessResponse struct {
	User        userInfoResponse `json:"user"`
	AccessToken string           `json:"accessToken"`
}

type loginFailureResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
}

type relatedTicketResponse struct {
	TicketID uint    `json:"ticketId"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

type securityEventResponse struct {
	ID          uint64         `json:"id"`
	EventType   string         `json:"eventType"`
	Severity    string         `json:"severity"`
	Timestamp   time.Time      `json:"timestamp"`
	Username    string         `json:"username,omitempty"`
	IPAddress   string         `json:"ipAddress"`
	Description string         `json:"description"`
	Resolved    bool           `json:"resolved"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type sessionResponse struct {
	SessionKey   string    `json:"sessionKey"`
	UserID       uint      `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	LongRunning  bool      `json:"longRunning"`
}

type resolveEventRequest struct {
	Notes string `json:"notes"`
}
