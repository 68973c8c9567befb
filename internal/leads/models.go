package leads

import (
	"errors"
	"strings"
	"time"
)

// Lead is a merchant-cash-advance prospect. ID is the CRM contact id.
type Lead struct {
	ID             string   `json:"id" db:"id"`
	FirstName      string   `json:"firstName,omitempty" db:"first_name"`
	LastName       string   `json:"lastName,omitempty" db:"last_name"`
	Phone          string   `json:"phone" db:"phone"`
	Email          string   `json:"email,omitempty" db:"email"`
	BusinessName   string   `json:"businessName,omitempty" db:"business_name"`
	CreditScore    *float64 `json:"creditScore,omitempty" db:"credit_score"`
	FundingNeeded  *float64 `json:"fundingNeeded,omitempty" db:"funding_needed"`
	MonthlyRevenue *float64 `json:"monthlyRevenue,omitempty" db:"monthly_revenue"`
	TimeInBusiness *float64 `json:"timeInBusiness,omitempty" db:"time_in_business"`

	Status Status `json:"status" db:"status"`
	Source Source `json:"source" db:"source"`
	Notes  string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Name is the display name, "First Last".
func (l Lead) Name() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

type Status string

const (
	StatusNew         Status = "new"
	StatusContacted   Status = "contacted"
	StatusQualified   Status = "qualified"
	StatusUnqualified Status = "unqualified"
	StatusConverted   Status = "converted"
)

type Source string

const (
	SourceVoiceCall Source = "voice_call"
	SourceManual    Source = "manual"
	SourceImport    Source = "import"
)

// CreateRequest is the operator input for a manually entered lead.
type CreateRequest struct {
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	BusinessName   string   `json:"businessName"`
	CreditScore    *float64 `json:"creditScore"`
	FundingNeeded  *float64 `json:"fundingNeeded"`
	MonthlyRevenue *float64 `json:"monthlyRevenue"`
	TimeInBusiness *float64 `json:"timeInBusiness"`
	Notes          string   `json:"notes"`
}

// Page is one window of the lead list.
type Page struct {
	Leads   []Lead `json:"leads"`
	Total   int    `json:"total"`
	HasMore bool   `json:"hasMore"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var (
	ErrInvalidArgument = errors.New("leads: invalid argument")
	ErrPhoneRequired   = &argumentError{msg: "Phone number is required"}
)

type argumentError struct{ msg string }

func (e *argumentError) Error() string { return e.msg }

func (e *argumentError) Is(target error) bool { return target == ErrInvalidArgument }
