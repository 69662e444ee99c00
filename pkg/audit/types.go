package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin             EventType = "auth.login"
	EventTypeAuthLogout            EventType = "auth.logout"
	EventTypeAuthLoginFailed       EventType = "auth.login_failed"
	EventTypeAuthTokenRefresh      EventType = "auth.token_refresh"
	EventTypeAuthTokenValidateFail EventType = "auth.token_validate_fail"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Admission events
	EventTypeRateLimitExceeded EventType = "ratelimit.exceeded"

	// Data mutation events
	EventTypeDataCreate EventType = "data.create"
	EventTypeDataUpdate EventType = "data.update"
	EventTypeDataDelete EventType = "data.delete"
	EventTypeDataUpload EventType = "data.file_upload"

	// HTTP request events recorded by the middleware
	EventTypeHTTPRequest EventType = "http.request"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeMember    ResourceType = "member"
	ResourceTypeDonation  ResourceType = "donation"
	ResourceTypeSocialAid ResourceType = "social_aid"
	ResourceTypeDocument  ResourceType = "document"
	ResourceTypeUser      ResourceType = "user"
	ResourceTypeSession   ResourceType = "session"
	ResourceTypeEndpoint  ResourceType = "endpoint"
)

// Event represents a single audit log entry
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// WithActor sets the actor fields and returns the event for chaining
func (e *Event) WithActor(userID, email, role string) *Event {
	e.UserID = userID
	e.Email = email
	e.Role = role
	return e
}

// WithResource sets the resource fields and returns the event for chaining
func (e *Event) WithResource(resourceType ResourceType, resourceID string) *Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithError records an error code and message
func (e *Event) WithError(code string, err error) *Event {
	e.ErrorCode = code
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}
