package models

import (
	"strings"

	"gorm.io/gorm"
)

const ItemTable = "items"

type ItemStatus string

const (
	ItemAvailable      ItemStatus = "Available"
	ItemOnLoan         ItemStatus = "OnLoan"
	ItemMaintenance    ItemStatus = "Maintenance"
	ItemDecommissioned ItemStatus = "Decommissioned"
)

// ItemStatuses is in sort order: sorting by status ranks rows by position here.
var ItemStatuses = []ItemStatus{ItemAvailable, ItemOnLoan, ItemMaintenance, ItemDecommissioned}

func (s ItemStatus) Valid() bool {
	for _, v := range ItemStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseItemStatus is case-insensitive.
func ParseItemStatus(s string) (ItemStatus, bool) {
	s = strings.TrimSpace(s)
	for _, v := range ItemStatuses {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return "", false
}

type Item struct {
	ID       string     `gorm:"primaryKey;size:36" json:"id"`
	Code     string     `gorm:"size:20;not null" json:"code"`
	Name     string     `gorm:"size:100;not null" json:"name"`
	Category string     `gorm:"size:50;not null" json:"category"`
	Status   ItemStatus `gorm:"size:20;not null" json:"status"`
	Location string     `gorm:"size:100" json:"location,omitempty"`
	AuditFields
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Loans []Loan `json:"-"`
}

func (Item) TableName() string { return ItemTable }
