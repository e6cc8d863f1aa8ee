package audit

import (
	"encoding/json"
	"time"
)

// Action names the operation being audited
type Action string

const (
	// Subscription lifecycle
	ActionSubscriptionCreate Action = "webhook.subscribe"
	ActionSubscriptionDelete Action = "webhook.unsubscribe"
	ActionSubscriptionToggle Action = "webhook.toggle"
	ActionSubscriptionTest   Action = "webhook.test"

	// Token registry
	ActionTokenRegister Action = "token.register"

	// Asset bundles
	ActionAssetUpload Action = "asset.upload"
	ActionAssetDelete Action = "asset.delete"

	// Maintenance
	ActionLogCleanup Action = "maintenance.log_cleanup"
)

// Status represents the outcome of an audited action
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusDenied  Status = "denied"
)

// SubjectType identifies what kind of record an entry refers to
type SubjectType string

const (
	SubjectSubscription SubjectType = "subscription"
	SubjectToken        SubjectType = "token"
	SubjectAsset        SubjectType = "asset"
)

// Entry is a single audit trail record. Actor is the wallet address
// that performed the action, taken from the request context.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Status    Status    `json:"status"`

	Actor       string      `json:"actor,omitempty"`
	SubjectType SubjectType `json:"subject_type,omitempty"`
	SubjectID   string      `json:"subject_id,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the entry to JSON
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an entry from JSON
func FromJSON(data []byte) (*Entry, error) {
	var entry Entry
	err := json.Unmarshal(data, &entry)
	return &entry, err
}

// SearchFilter narrows audit trail queries
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	Actor   string
	Actions []Action
	Status  *Status

	SubjectType SubjectType
	SubjectID   string

	Limit  int
	Offset int
}

// Matches reports whether the entry satisfies every set filter field
func (f SearchFilter) Matches(e *Entry) bool {
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.SubjectType != "" && e.SubjectType != f.SubjectType {
		return false
	}
	if f.SubjectID != "" && e.SubjectID != f.SubjectID {
		return false
	}
	return true
}

// ExportFormat represents the format for exporting the audit trail
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// Stats summarizes the audit trail
type Stats struct {
	TotalEntries int64             `json:"total_entries"`
	ByAction     map[Action]int64  `json:"by_action"`
	ByStatus     map[Status]int64  `json:"by_status"`
	UniqueActors int64             `json:"unique_actors"`
	Failures     int64             `json:"failures"`
	TimeRange    *TimeRange        `json:"time_range,omitempty"`
}

// TimeRange bounds a statistics query
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy defines how long audit entries are kept
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy keeps entries for 90 days
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
