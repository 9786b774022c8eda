package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// User is an entry of the users dataset. Teachers are linked to timetable rows through
// TeacherName, students through Section.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Role         UserRole   `json:"role"`
	TeacherName  string     `json:"teacher_name,omitempty"`
	Section      string     `json:"section,omitempty"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Public strips credentials for responses.
func (u User) Public() UserInfo {
	return UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		TeacherName: u.TeacherName,
		Section:     u.Section,
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
