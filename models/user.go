package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	UserTable       = "users"
	CredentialTable = "credentials"
)

type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Name         string `gorm:"size:100;not null" json:"name"`
	Email        string `gorm:"size:100;not null" json:"email"` // stored lower-case
	PasswordHash string `gorm:"not null" json:"-"`
	RoleID       string `gorm:"size:36;not null" json:"roleId"`
	Role         *Role  `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsActive     bool   `gorm:"not null" json:"isActive"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:500" json:"-"`

	AuditFields
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Credentials []Credential `json:"-"`
}

func (User) TableName() string { return UserTable }

// RoleName is empty when Role was not preloaded.
func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Credential is one registered passkey. CredentialID, PublicKey and AAGUID are binary.
type Credential struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          string     `gorm:"size:36;index;not null" json:"userId"`
	CredentialID    []byte     `gorm:"not null" json:"credentialId"`
	PublicKey       []byte     `gorm:"not null" json:"-"`
	AttestationType string     `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte     `gorm:"column:aaguid" json:"aaguid"`
	SignCount       uint32     `json:"signCount"`
	CloneWarning    bool       `json:"cloneWarning"`
	BackupEligible  bool       `json:"backupEligible"`
	BackupState     bool       `json:"backupState"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string { return CredentialTable }
