package models

import (
	"time"

	"gorm.io/datatypes"
)

const AuditLogTable = "audit_logs"

const (
	ActionCreate     = "CREATE"
	ActionUpdate     = "UPDATE"
	ActionDelete     = "DELETE"
	ActionApprove    = "APPROVE"
	ActionReject     = "REJECT"
	ActionDeliver    = "DELIVER"
	ActionReturn     = "RETURN"
	ActionLogin      = "LOGIN"
	ActionLogout     = "LOGOUT"
	ActionRegister   = "REGISTER"
	ActionRoleChange = "ROLE_CHANGE"
	ActionReport     = "REPORT"
)

// AuditLog is append-only. Table holds the name of the table the row
// describes; reports use the pseudo table "reports".
type AuditLog struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	Table       string         `gorm:"column:table_name;size:50;not null" json:"tableName"`
	Action      string         `gorm:"size:20;not null" json:"action"`
	PrimaryKey  string         `gorm:"size:50;not null" json:"primaryKey"`
	OldValues   datatypes.JSON `json:"oldValues,omitempty"`
	NewValues   datatypes.JSON `json:"newValues,omitempty"`
	ActionDate  time.Time      `gorm:"not null" json:"actionDate"`
	ActionBy    string         `gorm:"size:100;not null" json:"actionBy"`
	Description string         `gorm:"column:action_description;size:200" json:"description,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ipAddress,omitempty"`
	UserAgent   string         `gorm:"size:500" json:"userAgent,omitempty"`
}

func (AuditLog) TableName() string { return AuditLogTable }

const ReportsPseudoTable = "reports"
