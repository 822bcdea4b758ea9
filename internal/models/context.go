package models

// RocketContext is the "context" object the application API returns on every step.
type RocketContext struct {
	RmLoanID          string        `json:"rmLoanId"`
	RocketAccountID   string        `json:"rocketAccountId,omitempty"`
	RmClientID        string        `json:"rmClientId,omitempty"`
	LoanPurpose       string        `json:"loanPurpose,omitempty"`
	PrimaryFirstName  string        `json:"primaryFirstName,omitempty"`
	PrimaryLastName   string        `json:"primaryLastName,omitempty"`
	PrimaryEmail      string        `json:"primaryEmail,omitempty"`
	IsLoggedIn        bool          `json:"isLoggedIn,omitempty"`
	IsSpouseOnLoan    bool          `json:"isSpouseOnLoan,omitempty"`
	LeadTypeCode      []string      `json:"leadTypeCode,omitempty"`
	AppStatus         string        `json:"appStatus,omitempty"`
	CreditReport      *CreditReport `json:"creditReport,omitempty"`
	HasCoBorrower     bool          `json:"hasCoBorrower,omitempty"`
	IsAccountVerified bool          `json:"isAccountVerified,omitempty"`
}

// CreditReport is the subset of the credit summary surfaced to the borrower.
type CreditReport struct {
	Status          string `json:"status,omitempty"`
	PullSucceeded   bool   `json:"creditPullSucceeded,omitempty"`
	QualifyingScore int    `json:"qualifyingScore,omitempty"`
}

// Application status values.
const (
	StatusInProgress     = "In Progress"
	StatusCreditReviewed = "Credit Reviewed"
	StatusAccountCreated = "Account Created"
)

// ApplicationStatus summarises where an application stands.
type ApplicationStatus struct {
	RmLoanID     string `json:"rmLoanId"`
	Status       string `json:"status"`
	CreditStatus string `json:"creditStatus,omitempty"`
	AccountID    string `json:"rocketAccountId,omitempty"`
}

// Terminal reports whether no further status changes are expected.
func (s ApplicationStatus) Terminal() bool {
	return s.Status == StatusAccountCreated
}

// StatusFromContext derives the borrower-facing status from an API context.
func StatusFromContext(rmLoanID string, ctx RocketContext) ApplicationStatus {
	status := ApplicationStatus{RmLoanID: rmLoanID, Status: StatusInProgress}
	if ctx.AppStatus != "" {
		status.Status = ctx.AppStatus
	}
	if ctx.CreditReport != nil {
		status.CreditStatus = ctx.CreditReport.Status
		if ctx.CreditReport.PullSucceeded {
			status.Status = StatusCreditReviewed
		}
	}
	if ctx.RocketAccountID != "" {
		status.AccountID = ctx.RocketAccountID
		status.Status = StatusAccountCreated
	}
	return status
}
