package models

import "time"

// RequestStatus tracks a reschedule request through review.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// RescheduleRequest is a teacher's pending request to cancel or move one of their slots.
type RescheduleRequest struct {
	ID            string           `json:"id"`
	Type          ModificationType `json:"request_type"`
	Teacher       string           `json:"teacher"`
	RequestedBy   string           `json:"requested_by"`
	Day           string           `json:"day"`
	Slot          string           `json:"slot"`
	PreferredSlot string           `json:"preferred_slot,omitempty"`
	Section       string           `json:"section,omitempty"`
	Subject       string           `json:"subject,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Group         string           `json:"group,omitempty"`
	Status        RequestStatus    `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy    string           `json:"resolved_by,omitempty"`
	AdminNote     string           `json:"admin_note,omitempty"`
}

// Pending reports whether the request still awaits review.
func (r RescheduleRequest) Pending() bool {
	return r.Status == RequestStatusPending
}

// Modification builds the temporal modification applied when the request is approved.
func (r RescheduleRequest) Modification(now time.Time, expiresAt time.Time) TemporalModification {
	mod := TemporalModification{
		Type:      r.Type,
		RequestID: r.ID,
		Teacher:   r.Teacher,
		Day:       r.Day,
		Slot:      r.Slot,
		AppliedAt: now,
		ExpiresAt: expiresAt,
	}
	if r.Type == ModificationReslot {
		mod.TargetSlot = r.PreferredSlot
	}
	return mod
}
