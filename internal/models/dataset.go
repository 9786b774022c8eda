package models

// Logical dataset names persisted through the dataset store.
const (
	DatasetUsers              = "users"
	DatasetPublishedTimetable = "published_timetable"
	DatasetRescheduleRequests = "reschedule_requests"
	DatasetActivityLog        = "activity_log"
)
