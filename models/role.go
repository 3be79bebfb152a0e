package models

const RoleTable = "roles"

const (
	RoleAdministrator = "Administrator"
	RoleOperator      = "Operator"
)

type Role struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Name        string `gorm:"size:50;not null" json:"name"`
	Description string `gorm:"size:200" json:"description,omitempty"`
	AuditFields

	Users []User `gorm:"foreignKey:RoleID" json:"-"`
}

func (Role) TableName() string { return RoleTable }
