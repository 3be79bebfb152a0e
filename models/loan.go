package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const LoanTable = "loans"

// MaxCommentsLength bounds Loan.Comments in characters.
const MaxCommentsLength = 500

type LoanStatus string

const (
	LoanPending   LoanStatus = "Pending"
	LoanApproved  LoanStatus = "Approved"
	LoanRejected  LoanStatus = "Rejected"
	LoanDelivered LoanStatus = "Delivered"
	LoanReturned  LoanStatus = "Returned"
)

var LoanStatuses = []LoanStatus{LoanPending, LoanApproved, LoanRejected, LoanDelivered, LoanReturned}

// ActiveLoanStatuses hold the item: at most one loan per item may be in one of them.
var ActiveLoanStatuses = []LoanStatus{LoanPending, LoanApproved, LoanDelivered}

var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanPending:   {LoanApproved, LoanRejected},
	LoanApproved:  {LoanDelivered},
	LoanDelivered: {LoanReturned},
}

func (s LoanStatus) Valid() bool {
	for _, v := range LoanStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParseLoanStatus(s string) (LoanStatus, bool) {
	s = strings.TrimSpace(s)
	for _, v := range LoanStatuses {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return "", false
}

func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, n := range loanTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func (s LoanStatus) IsActive() bool {
	for _, v := range ActiveLoanStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s LoanStatus) IsTerminal() bool { return s == LoanRejected || s == LoanReturned }

// ReleasesItem reports whether entering s puts the item back to Available.
func (s LoanStatus) ReleasesItem() bool { return s == LoanRejected || s == LoanReturned }

type Loan struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"size:36;not null;index" json:"userId"`
	ItemID       string     `gorm:"size:36;not null;index" json:"itemId"`
	RequestDate  time.Time  `gorm:"not null" json:"requestDate"`
	DeliveryDate *time.Time `json:"deliveryDate,omitempty"`
	ReturnDate   *time.Time `json:"returnDate,omitempty"`
	Status       LoanStatus `gorm:"size:20;not null;index" json:"status"`
	Comments     string     `gorm:"size:500" json:"comments,omitempty"`
	AuditFields

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Item *Item `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

func (Loan) TableName() string { return LoanTable }

// AppendComments joins new comments onto the existing ones with a newline.
// Blank additions leave the comments untouched.
func AppendComments(existing, add string) string {
	add = strings.TrimSpace(add)
	switch {
	case add == "":
		return existing
	case existing == "":
		return add
	}
	return existing + "\n" + add
}

func CommentsTooLong(s string) bool { return utf8.RuneCountInString(s) > MaxCommentsLength }

// IsOverdue: delivered, not returned, and delivered before cutoff.
func (l *Loan) IsOverdue(cutoff time.Time) bool {
	return l.Status == LoanDelivered && l.ReturnDate == nil &&
		l.DeliveryDate != nil && l.DeliveryDate.Before(cutoff)
}
