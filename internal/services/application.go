package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/rocket-approval/mortgage-agent/internal/client"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/models"
)

var (
	ErrInvalidResponse = errors.New("invalid response format")
	ErrInvalidLoanID   = errors.New("invalid rmLoanId format")
	ErrNoApplication   = errors.New("no application in progress")
)

// Doer is the transport the service needs.
type Doer interface {
	Do(ctx context.Context, call client.Call) (*client.Reply, error)
}

// ApplicationService wraps every step of the purchase application API.
type ApplicationService struct {
	client          Doer
	accountRedirect string
}

// NewApplicationService creates a new application service
func NewApplicationService(apiClient Doer, accountRedirect string) *ApplicationService {
	return &ApplicationService{
		client:          apiClient,
		accountRedirect: accountRedirect,
	}
}

// StepResult is what a submitted step hands back.
type StepResult struct {
	Session models.Session
	Raw     json.RawMessage
}

// StartApplication opens a new purchase application.
func (s *ApplicationService) StartApplication(ctx context.Context) (StepResult, error) {
	logger.Info("Starting new purchase application")

	reply, err := s.client.Do(ctx, client.Call{
		Method:   "POST",
		Endpoint: "/api/welcome",
		Body:     map[string]string{"loanPurpose": "Purchase"},
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to start application: %w", err)
	}

	loanID, err := extractLoanID(reply.Body)
	if err != nil {
		logger.Error("Unexpected welcome response: %v", err)
		return StepResult{}, err
	}

	logger.Info("Application %s started", loanID)
	return StepResult{
		Session: models.Session{RmLoanID: loanID, SessionToken: reply.SessionToken},
		Raw:     reply.Body,
	}, nil
}

func extractLoanID(body json.RawMessage) (string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return "", ErrInvalidResponse
	}

	var ctx map[string]json.RawMessage
	if raw, ok := envelope["context"]; ok {
		if err := json.Unmarshal(raw, &ctx); err != nil || ctx == nil {
			return "", fmt.Errorf("%w: context is not an object", ErrInvalidResponse)
		}
	}

	raw, ok := ctx["rmLoanId"]
	if !ok {
		return "", ErrInvalidLoanID
	}
	var loanID string
	if err := json.Unmarshal(raw, &loanID); err != nil || loanID == "" {
		return "", ErrInvalidLoanID
	}
	return loanID, nil
}

// GetApplicationStatus reads the current state of an application.
func (s *ApplicationService) GetApplicationStatus(ctx context.Context, sess models.Session) (models.ApplicationStatus, error) {
	if !sess.Started() {
		return models.ApplicationStatus{}, ErrNoApplication
	}

	reply, err := s.client.Do(ctx, client.Call{
		Method:       "GET",
		Endpoint:     "/api/welcome/" + url.PathEscape(sess.RmLoanID),
		SessionToken: sess.SessionToken,
		Idempotent:   true,
	})
	if err != nil {
		return models.ApplicationStatus{}, fmt.Errorf("failed to get application status: %w", err)
	}

	var resp models.APIResponse[models.RocketContext]
	if len(reply.Body) > 0 {
		if err := reply.Decode(&resp); err != nil {
			logger.Warn("Status response for %s was not understood: %v", sess.RmLoanID, err)
		}
	}

	return models.StatusFromContext(sess.RmLoanID, resp.Context), nil
}

// SetBuyingPlans records whether the borrower has already found a home.
func (s *ApplicationService) SetBuyingPlans(ctx context.Context, sess models.Session, foundHome bool) (StepResult, error) {
	return s.post(ctx, sess, "buying plans", "/api/home-info/buying-plans", map[string]interface{}{
		"rmLoanId":    sess.RmLoanID,
		"buyingPlans": foundHome,
	})
}

// SetHomeDetails records buying plans and where the borrower plans to live.
func (s *ApplicationService) SetHomeDetails(ctx context.Context, sess models.Session, details models.HomeDetails) (StepResult, error) {
	if err := details.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid home details: %w", err)
	}
	if _, err := s.SetBuyingPlans(ctx, sess, details.FoundHome); err != nil {
		return StepResult{}, err
	}

	body := map[string]interface{}{
		"rmLoanId":      sess.RmLoanID,
		"location":      details.Location,
		"occupancyType": details.OccupancyType,
		"propertyType":  nil,
	}
	if details.PropertyType != "" {
		body["propertyType"] = details.PropertyType
	}
	return s.post(ctx, sess, "home details", "/api/home-info/buying-plans/home-details", body)
}

func (s *ApplicationService) SetHomePrice(ctx context.Context, sess models.Session, purchase models.HomePurchase) (StepResult, error) {
	if err := purchase.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid home price: %w", err)
	}
	return s.post(ctx, sess, "home price", "/api/home-info/buying-plans/home-price", map[string]interface{}{
		"rmLoanId": sess.RmLoanID,
		"purchase": purchase,
	})
}

func (s *ApplicationService) SetRealEstateAgent(ctx context.Context, sess models.Session, agent models.RealEstateAgent) (StepResult, error) {
	if err := agent.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid agent: %w", err)
	}
	return s.post(ctx, sess, "real estate agent", "/api/home-info/buying-plans/agent", map[string]interface{}{
		"rmLoanId":        sess.RmLoanID,
		"realEstateAgent": agent,
	})
}

func (s *ApplicationService) SetLivingSituation(ctx context.Context, sess models.Session, situation models.LivingSituation) (StepResult, error) {
	if err := situation.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid living situation: %w", err)
	}
	return s.post(ctx, sess, "living situation", "/api/home-info/own-rent-address", map[string]interface{}{
		"rmLoanId":               sess.RmLoanID,
		"currentLivingSituation": situation,
	})
}

func (s *ApplicationService) SetPersonalInfo(ctx context.Context, sess models.Session, info models.PersonalInfo) (StepResult, error) {
	if err := info.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid personal info: %w", err)
	}
	return s.post(ctx, sess, "personal info", "/api/personal-info", map[string]interface{}{
		"rmLoanId":     sess.RmLoanID,
		"personalInfo": info,
	})
}

func (s *ApplicationService) SetContactInfo(ctx context.Context, sess models.Session, info models.ContactInfo) (StepResult, error) {
	if err := info.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid contact info: %w", err)
	}
	return s.post(ctx, sess, "contact info", "/api/personal-info/contact-info", map[string]interface{}{
		"rmLoanId":                 sess.RmLoanID,
		"firstName":                info.FirstName,
		"lastName":                 info.LastName,
		"email":                    info.Email,
		"phoneNumber":              info.PhoneNumber,
		"hasPromotionalSmsConsent": info.HasPromotionalSMSConsent,
	})
}

// SetMilitaryStatus sends service details only for borrowers who served.
func (s *ApplicationService) SetMilitaryStatus(ctx context.Context, sess models.Session, service models.MilitaryService) (StepResult, error) {
	if err := service.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid military status: %w", err)
	}

	body := map[string]interface{}{
		"rmLoanId":       sess.RmLoanID,
		"militaryStatus": service.Status,
		"eligibleForVA":  service.EligibleForVA,
	}
	if service.Served() {
		body["militaryBranch"] = service.Branch
		if service.ServiceType != "" {
			body["serviceType"] = service.ServiceType
		}
		if service.ExpirationDate != nil {
			body["expirationDate"] = service.ExpirationDate
		}
	}
	return s.post(ctx, sess, "military status", "/api/personal-info/military-status", body)
}

func (s *ApplicationService) SetMaritalStatus(ctx context.Context, sess models.Session, status models.MaritalStatus, spouseOnLoan bool) (StepResult, error) {
	if status != models.MaritalMarried && status != models.MaritalSingle {
		return StepResult{}, fmt.Errorf("invalid marital status: %q", status)
	}

	body := map[string]interface{}{
		"rmLoanId":      sess.RmLoanID,
		"maritalStatus": status,
	}
	if status == models.MaritalMarried {
		body["isSpouseOnLoan"] = spouseOnLoan
	}
	return s.post(ctx, sess, "marital status", "/api/personal-info/marital-status", body)
}

// SetIncome sends employer details only for employment income.
func (s *ApplicationService) SetIncome(ctx context.Context, sess models.Session, income models.Income) (StepResult, error) {
	if income.IncomeType == "" {
		income.IncomeType = models.IncomeEmployment
	}
	if err := income.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid income: %w", err)
	}

	body := map[string]interface{}{
		"rmLoanId":     sess.RmLoanID,
		"annualIncome": income.AnnualIncome,
		"incomeType":   income.IncomeType,
	}
	if income.IncomeType == models.IncomeEmployment && income.EmployerName != "" {
		body["employerName"] = income.EmployerName
		body["jobTitle"] = income.JobTitle
		body["yearsAtEmployer"] = income.YearsAtEmployer
		body["monthsAtEmployer"] = income.MonthsAtEmployer
	}
	return s.post(ctx, sess, "income", "/api/finances/income", body)
}

func (s *ApplicationService) SetFunds(ctx context.Context, sess models.Session, funds models.Funds) (StepResult, error) {
	if funds.PrimaryAssets.Assets == nil {
		funds.PrimaryAssets.Assets = []models.BankingAsset{}
	}
	if funds.PrimaryAssets.GiftFunds == nil {
		funds.PrimaryAssets.GiftFunds = []models.GiftFund{}
	}
	if err := funds.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid funds: %w", err)
	}

	body := map[string]interface{}{
		"rmLoanId":      sess.RmLoanID,
		"primaryAssets": funds.PrimaryAssets,
	}
	if funds.SpouseAssets != nil {
		body["spouseAssets"] = funds.SpouseAssets
	}
	if funds.DownPaymentPercentage != nil {
		body["downPaymentPercentage"] = *funds.DownPaymentPercentage
	}
	return s.post(ctx, sess, "funds", "/api/finances/funds", body)
}

// SoftCreditPull submits birthdate and SSN for a soft credit inquiry.
func (s *ApplicationService) SoftCreditPull(ctx context.Context, sess models.Session, pull models.CreditPull) (StepResult, error) {
	if err := pull.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid credit details: %w", err)
	}

	body := map[string]interface{}{
		"rmLoanId":  sess.RmLoanID,
		"birthdate": pull.Birthdate,
		"ssnLast4":  pull.SSNLast4,
	}
	if pull.FullSSN != "" {
		body["fullSsn"] = pull.FullSSN
	}
	return s.create(ctx, sess, "soft credit pull", "/api/credit-info/birthdate-SSN", body)
}

// CreateAccount registers the borrower's online account and returns its id.
func (s *ApplicationService) CreateAccount(ctx context.Context, sess models.Session, account models.Account) (StepResult, error) {
	if err := account.Validate(); err != nil {
		return StepResult{}, fmt.Errorf("invalid account: %w", err)
	}
	if account.Redirect == "" {
		account.Redirect = s.accountRedirect
	}

	body := map[string]interface{}{
		"clientFirstName": account.FirstName,
		"clientLastName":  account.LastName,
		"clientUsername":  account.Username,
		"password":        account.Password,
		"rmLoanId":        sess.RmLoanID,
		"redirect":        account.Redirect,
	}
	if account.RmClientID != "" {
		body["rmClientId"] = account.RmClientID
	}

	result, err := s.create(ctx, sess, "account", "/api/account-create", body)
	if err != nil {
		return result, err
	}

	var resp models.APIResponse[models.RocketContext]
	if err := json.Unmarshal(result.Raw, &resp); err == nil {
		result.Session.RocketAccountID = resp.Context.RocketAccountID
	}
	return result, nil
}

func (s *ApplicationService) post(ctx context.Context, sess models.Session, what, endpoint string, body interface{}) (StepResult, error) {
	return s.submit(ctx, sess, what, endpoint, body, true)
}

// create posts a call that makes something new on the server and must not be repeated blindly.
func (s *ApplicationService) create(ctx context.Context, sess models.Session, what, endpoint string, body interface{}) (StepResult, error) {
	return s.submit(ctx, sess, what, endpoint, body, false)
}

func (s *ApplicationService) submit(ctx context.Context, sess models.Session, what, endpoint string, body interface{}, idempotent bool) (StepResult, error) {
	if !sess.Started() {
		return StepResult{}, ErrNoApplication
	}

	logger.Debug("Submitting %s for application %s", what, sess.RmLoanID)
	reply, err := s.client.Do(ctx, client.Call{
		Method:       "POST",
		Endpoint:     endpoint,
		Body:         body,
		SessionToken: sess.SessionToken,
		Idempotent:   idempotent,
	})
	if err != nil {
		logger.Error("Failed to update %s for application %s: %v", what, sess.RmLoanID, err)
		return StepResult{}, fmt.Errorf("failed to update %s: %w", what, err)
	}

	if reply.SessionToken != "" {
		sess.SessionToken = reply.SessionToken
	}
	logger.Info("Updated %s for application %s", what, sess.RmLoanID)
	return StepResult{Session: sess, Raw: reply.Body}, nil
}
