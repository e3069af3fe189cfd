package models

import "time"

type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

type ReportExport struct {
	ID          string       `json:"id"`
	UserID      int64        `json:"user_id"`
	Status      ExportStatus `json:"status"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	ObjectKey   *string      `json:"-"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`

	DownloadURL string `json:"download_url,omitempty"`
}

type AttendanceSummary struct {
	EmployeeID   int64   `json:"employee_id"`
	EmployeeName string  `json:"employee_name"`
	EmployeeCode string  `json:"employee_code"`
	Sessions     int64   `json:"sessions"`
	OpenSessions int64   `json:"open_sessions"`
	TotalHours   float64 `json:"total_hours"`
}
