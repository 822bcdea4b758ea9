package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocket-approval/mortgage-agent/internal/client"
	"github.com/rocket-approval/mortgage-agent/internal/models"
)

type recordedCall struct {
	call client.Call
	body map[string]interface{}
}

type fakeDoer struct {
	calls   []recordedCall
	replies map[string]*client.Reply
	err     error
}

func (f *fakeDoer) Do(_ context.Context, call client.Call) (*client.Reply, error) {
	var body map[string]interface{}
	if call.Body != nil {
		data, _ := json.Marshal(call.Body)
		_ = json.Unmarshal(data, &body)
	}
	f.calls = append(f.calls, recordedCall{call: call, body: body})
	if f.err != nil {
		return nil, f.err
	}
	if reply, ok := f.replies[call.Endpoint]; ok {
		return reply, nil
	}
	return &client.Reply{StatusCode: 200, Body: json.RawMessage(`{"context":{}}`)}, nil
}

func (f *fakeDoer) last() recordedCall {
	return f.calls[len(f.calls)-1]
}

var sess = models.Session{RmLoanID: "loan-1", SessionToken: "tok"}

func TestStartApplication(t *testing.T) {
	doer := &fakeDoer{replies: map[string]*client.Reply{
		"/api/welcome": {StatusCode: 200, SessionToken: "tok-9", Body: json.RawMessage(`{"context":{"rmLoanId":"3490"}}`)},
	}}
	svc := NewApplicationService(doer, "")

	result, err := svc.StartApplication(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3490", result.Session.RmLoanID)
	assert.Equal(t, "tok-9", result.Session.SessionToken)
	assert.Equal(t, "Purchase", doer.last().body["loanPurpose"])
}

func TestStartApplicationRejectsMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not an object", `["nope"]`, ErrInvalidResponse},
		{"context not an object", `{"context":"nope"}`, ErrInvalidResponse},
		{"missing loan id", `{"context":{}}`, ErrInvalidLoanID},
		{"numeric loan id", `{"context":{"rmLoanId":12345}}`, ErrInvalidLoanID},
		{"invalid json", `{"context":`, ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := &fakeDoer{replies: map[string]*client.Reply{
				"/api/welcome": {StatusCode: 200, Body: json.RawMessage(tt.body)},
			}}
			_, err := NewApplicationService(doer, "").StartApplication(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStartApplicationNetworkError(t *testing.T) {
	doer := &fakeDoer{err: errors.New("connection refused")}
	_, err := NewApplicationService(doer, "").StartApplication(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStepsRequireAnApplication(t *testing.T) {
	svc := NewApplicationService(&fakeDoer{}, "")
	_, err := svc.SetBuyingPlans(context.Background(), models.Session{}, true)
	assert.ErrorIs(t, err, ErrNoApplication)

	_, err = svc.GetApplicationStatus(context.Background(), models.Session{})
	assert.ErrorIs(t, err, ErrNoApplication)
}

func TestSetHomeDetailsPostsBuyingPlansFirst(t *testing.T) {
	doer := &fakeDoer{}
	svc := NewApplicationService(doer, "")

	_, err := svc.SetHomeDetails(context.Background(), sess, models.HomeDetails{
		FoundHome:     true,
		Location:      models.Location{City: "Detroit", State: "MI", ZipCode: "48226"},
		OccupancyType: models.OccupancyPrimary,
	})
	require.NoError(t, err)
	require.Len(t, doer.calls, 2)

	assert.Equal(t, "/api/home-info/buying-plans", doer.calls[0].call.Endpoint)
	assert.Equal(t, true, doer.calls[0].body["buyingPlans"])
	assert.Equal(t, "tok", doer.calls[0].call.SessionToken)

	details := doer.calls[1]
	assert.Equal(t, "/api/home-info/buying-plans/home-details", details.call.Endpoint)
	assert.Equal(t, "loan-1", details.body["rmLoanId"])
	assert.Nil(t, details.body["propertyType"])
	assert.Equal(t, "primary", details.body["occupancyType"])
	assert.Equal(t, map[string]interface{}{"city": "Detroit", "state": "MI", "zipCode": "48226"}, details.body["location"])
}

func TestSetMilitaryStatusPayload(t *testing.T) {
	doer := &fakeDoer{}
	svc := NewApplicationService(doer, "")

	_, err := svc.SetMilitaryStatus(context.Background(), sess, models.MilitaryService{Status: models.MilitaryNone, Branch: models.BranchArmy})
	require.NoError(t, err)
	assert.NotContains(t, doer.last().body, "militaryBranch")
	assert.Equal(t, "none", doer.last().body["militaryStatus"])

	_, err = svc.SetMilitaryStatus(context.Background(), sess, models.MilitaryService{
		Status:         models.MilitaryPastDuty,
		EligibleForVA:  true,
		Branch:         models.BranchMarineCorps,
		ServiceType:    models.ServiceRegular,
		ExpirationDate: &models.ServiceExpiration{Day: "1", Month: "6", Year: "2015"},
	})
	require.NoError(t, err)
	body := doer.last().body
	assert.Equal(t, "marineCorps", body["militaryBranch"])
	assert.Equal(t, "regularMilitary", body["serviceType"])
	assert.Equal(t, true, body["eligibleForVA"])
	assert.Equal(t, map[string]interface{}{"day": "1", "month": "6", "year": "2015"}, body["expirationDate"])
}

func TestSetMaritalStatusPayload(t *testing.T) {
	doer := &fakeDoer{}
	svc := NewApplicationService(doer, "")

	_, err := svc.SetMaritalStatus(context.Background(), sess, models.MaritalSingle, true)
	require.NoError(t, err)
	assert.NotContains(t, doer.last().body, "isSpouseOnLoan")

	_, err = svc.SetMaritalStatus(context.Background(), sess, models.MaritalMarried, true)
	require.NoError(t, err)
	assert.Equal(t, true, doer.last().body["isSpouseOnLoan"])

	_, err = svc.SetMaritalStatus(context.Background(), sess, "divorced", false)
	assert.Error(t, err)
}

func TestSetIncomePayload(t *testing.T) {
	doer := &fakeDoer{}
	svc := NewApplicationService(doer, "")

	_, err := svc.SetIncome(context.Background(), sess, models.Income{AnnualIncome: 95000, EmployerName: "Acme", JobTitle: "Engineer", YearsAtEmployer: 3})
	require.NoError(t, err)
	body := doer.last().body
	assert.Equal(t, "Employment", body["incomeType"])
	assert.Equal(t, "Acme", body["employerName"])
	assert.Equal(t, float64(3), body["yearsAtEmployer"])

	_, err = svc.SetIncome(context.Background(), sess, models.Income{AnnualIncome: 30000, IncomeType: models.IncomePension, EmployerName: "Ignored"})
	require.NoError(t, err)
	assert.NotContains(t, doer.last().body, "employerName")
}

func TestSetFundsPayload(t *testing.T) {
	doer := &fakeDoer{}
	svc := NewApplicationService(doer, "")

	pct := 20.0
	_, err := svc.SetFunds(context.Background(), sess, models.Funds{
		PrimaryAssets: models.PrimaryAssets{
			Assets: []models.BankingAsset{{BankAmount: 50000, BankName: "Ally", TypeCode: models.AccountSavings}},
		},
		DownPaymentPercentage: &pct,
	})
	require.NoError(t, err)

	body := doer.last().body
	assert.Equal(t, 20.0, body["downPaymentPercentage"])
	assert.NotContains(t, body, "spouseAssets")
	primary := body["primaryAssets"].(map[string]interface{})
	assert.Equal(t, []interface{}{}, primary["giftFunds"])
	assert.Len(t, primary["assets"], 1)
}

func TestSoftCreditPullOmitsFullSSN(t *testing.T) {
	doer := &fakeDoer{}
	svc := NewApplicationService(doer, "")

	_, err := svc.SoftCreditPull(context.Background(), sess, models.CreditPull{Birthdate: "1990-04-02", SSNLast4: "6789"})
	require.NoError(t, err)
	assert.Equal(t, "/api/credit-info/birthdate-SSN", doer.last().call.Endpoint)
	assert.NotContains(t, doer.last().body, "fullSsn")
}

func TestCreateAccount(t *testing.T) {
	doer := &fakeDoer{replies: map[string]*client.Reply{
		"/api/account-create": {StatusCode: 200, Body: json.RawMessage(`{"context":{"rocketAccountId":"acct-7"}}`)},
	}}
	svc := NewApplicationService(doer, "https://dashboard.example.com")

	result, err := svc.CreateAccount(context.Background(), sess, models.Account{
		FirstName: "Jane", LastName: "Doe", Username: "jane@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "acct-7", result.Session.RocketAccountID)
	assert.Equal(t, "tok", result.Session.SessionToken)

	body := doer.last().body
	assert.Equal(t, "https://dashboard.example.com", body["redirect"])
	assert.Equal(t, "jane@example.com", body["clientUsername"])
	assert.NotContains(t, body, "rmClientId")
}

func TestGetApplicationStatus(t *testing.T) {
	doer := &fakeDoer{replies: map[string]*client.Reply{
		"/api/welcome/loan-1": {StatusCode: 200, Body: json.RawMessage(`{"context":{"rmLoanId":"loan-1"}}`)},
	}}
	status, err := NewApplicationService(doer, "").GetApplicationStatus(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, status.Status)
	assert.Equal(t, "GET", doer.last().call.Method)
}

func TestInvalidPayloadIsNotSent(t *testing.T) {
	doer := &fakeDoer{}
	svc := NewApplicationService(doer, "")

	_, err := svc.SetContactInfo(context.Background(), sess, models.ContactInfo{FirstName: "Jane"})
	require.Error(t, err)
	assert.Empty(t, doer.calls)
}

func TestOnlyCreateCallsAreMarkedNonIdempotent(t *testing.T) {
	doer := &fakeDoer{replies: map[string]*client.Reply{
		"/api/welcome": {StatusCode: 200, Body: json.RawMessage(`{"context":{"rmLoanId":"3490"}}`)},
	}}
	svc := NewApplicationService(doer, "")
	ctx := context.Background()

	_, err := svc.StartApplication(ctx)
	require.NoError(t, err)
	_, err = svc.SetBuyingPlans(ctx, sess, true)
	require.NoError(t, err)
	_, err = svc.SoftCreditPull(ctx, sess, models.CreditPull{Birthdate: "1990-04-02", SSNLast4: "6789"})
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, sess, models.Account{
		FirstName: "Jane", LastName: "Doe", Username: "jane@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)
	_, err = svc.GetApplicationStatus(ctx, sess)
	require.NoError(t, err)

	idempotent := map[string]bool{}
	for _, c := range doer.calls {
		idempotent[c.call.Endpoint] = c.call.Idempotent
	}
	assert.Equal(t, map[string]bool{
		"/api/welcome":                   false,
		"/api/home-info/buying-plans":    true,
		"/api/credit-info/birthdate-SSN": false,
		"/api/account-create":            false,
		"/api/welcome/loan-1":            true,
	}, idempotent)
}
