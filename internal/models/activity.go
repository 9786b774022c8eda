package models

import "time"

// ActivityType classifies activity log entries.
type ActivityType string

const (
	ActivityTimetablePublished ActivityType = "timetable_published"
	ActivityTimetableDeleted   ActivityType = "timetable_deleted"
	ActivityRequestCreated     ActivityType = "reschedule_requested"
	ActivityRequestApproved    ActivityType = "reschedule_approved"
	ActivityRequestRejected    ActivityType = "reschedule_rejected"
	ActivityChangesExpired     ActivityType = "temporary_changes_expired"
)

// ActivityEntry is one event of the activity log dataset.
type ActivityEntry struct {
	ID        string                 `json:"id"`
	Type      ActivityType           `json:"type"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ActivityFeed is the admin dashboard summary.
type ActivityFeed struct {
	Events          []ActivityEntry `json:"events"`
	PendingRequests int             `json:"pending_requests"`
	PendingByType   map[string]int  `json:"pending_by_type"`
	ActiveChanges   int             `json:"active_changes"`
}
