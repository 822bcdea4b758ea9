package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocket-approval/mortgage-agent/internal/client"
	"github.com/rocket-approval/mortgage-agent/internal/models"
	"github.com/rocket-approval/mortgage-agent/internal/services"
)

type recordingDoer struct {
	calls []client.Call
	reply func(call client.Call) *client.Reply
}

func (d *recordingDoer) Do(ctx context.Context, call client.Call) (*client.Reply, error) {
	d.calls = append(d.calls, call)
	if d.reply != nil {
		return d.reply(call), nil
	}
	return &client.Reply{StatusCode: http.StatusOK, Body: json.RawMessage(`{"context":{}}`)}, nil
}

func (d *recordingDoer) body(t *testing.T, i int) map[string]interface{} {
	t.Helper()
	require.Greater(t, len(d.calls), i)
	data, err := json.Marshal(d.calls[i].Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func mortgageRegistry(doer *recordingDoer) *Registry {
	r := NewRegistry(nil)
	RegisterMortgageTools(r, services.NewApplicationService(doer, "https://example.com/done"))
	return r
}

func started() *Context {
	return &Context{Session: models.Session{RmLoanID: "12345", SessionToken: "tok"}}
}

func TestStartMortgageApplicationUpdatesContext(t *testing.T) {
	doer := &recordingDoer{reply: func(client.Call) *client.Reply {
		return &client.Reply{SessionToken: "fresh", Body: json.RawMessage(`{"context":{"rmLoanId":"98765"}}`)}
	}}
	r := mortgageRegistry(doer)
	tc := &Context{}

	resp := r.Execute(context.Background(), StartMortgageApplication, tc, nil)

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "98765", tc.Session.RmLoanID)
	assert.Equal(t, "fresh", tc.Session.SessionToken)
	assert.JSONEq(t, `{"context":{"rmLoanId":"98765"}}`, string(resp.RawResponse))
}

func TestSessionParamsAreNotInferrable(t *testing.T) {
	doer := &recordingDoer{}
	r := mortgageRegistry(doer)

	resp := r.Execute(context.Background(), SetHomePrice, started(),
		json.RawMessage(`{"has_budget":true,"desired_price":400000,"rm_loan_id":"evil","session_token":"stolen"}`))

	require.True(t, resp.Success, resp.Message)
	require.Len(t, doer.calls, 1)
	assert.Equal(t, "tok", doer.calls[0].SessionToken)
	assert.Equal(t, "12345", doer.body(t, 0)["rmLoanId"])
}

func TestMissingRequiredParam(t *testing.T) {
	doer := &recordingDoer{}
	r := mortgageRegistry(doer)

	resp := r.Execute(context.Background(), SetIncome, started(), json.RawMessage(`{"employer_name":"Acme"}`))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, `missing required parameter "annual_income"`)
	assert.Empty(t, doer.calls)
}

func TestStepsRequireStartedApplication(t *testing.T) {
	r := mortgageRegistry(&recordingDoer{})

	resp := r.Execute(context.Background(), SetMaritalStatus, &Context{}, json.RawMessage(`{"marital_status":"single"}`))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, services.ErrNoApplication.Error())
}

func TestSetNewHomeDetailsDefaultsOccupancy(t *testing.T) {
	doer := &recordingDoer{}
	r := mortgageRegistry(doer)

	resp := r.Execute(context.Background(), SetNewHomeDetails, started(),
		json.RawMessage(`{"new_home_city":"Detroit","new_home_state":"mi","new_home_zip_code":"48226"}`))

	require.True(t, resp.Success, resp.Message)
	require.Len(t, doer.calls, 2)
	assert.Equal(t, false, doer.body(t, 0)["buyingPlans"])
	details := doer.body(t, 1)
	assert.Equal(t, "primary", details["occupancyType"])
	assert.Nil(t, details["propertyType"])
	assert.Equal(t, "MI", details["location"].(map[string]interface{})["state"])
}

func TestSetContactInfoParsesPhone(t *testing.T) {
	doer := &recordingDoer{}
	r := mortgageRegistry(doer)

	resp := r.Execute(context.Background(), SetContactInfo, started(), json.RawMessage(
		`{"first_name":"Jane","last_name":"Doe","email":"jane@example.com","phone_number":"(313) 555-1234"}`))
	require.True(t, resp.Success, resp.Message)
	phone := doer.body(t, 0)["phoneNumber"].(map[string]interface{})
	assert.Equal(t, "313", phone["areaCode"])
	assert.Equal(t, "1234", phone["line"])

	resp = r.Execute(context.Background(), SetContactInfo, started(), json.RawMessage(
		`{"first_name":"Jane","last_name":"Doe","email":"jane@example.com","phone_number":"555"}`))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "please fix your mistakes")
}

func TestSetMilitaryStatusSplitsExpiration(t *testing.T) {
	doer := &recordingDoer{}
	r := mortgageRegistry(doer)

	resp := r.Execute(context.Background(), SetMilitaryStatus, started(), json.RawMessage(
		`{"military_status":"reserve","military_branch":"navy","service_expiration":"2027-03-09","eligible_for_va":true}`))

	require.True(t, resp.Success, resp.Message)
	body := doer.body(t, 0)
	assert.Equal(t, "navy", body["militaryBranch"])
	assert.Equal(t, map[string]interface{}{"day": "9", "month": "3", "year": "2027"}, body["expirationDate"])
}

func TestSetFundsBuildsAssets(t *testing.T) {
	doer := &recordingDoer{}
	r := mortgageRegistry(doer)

	resp := r.Execute(context.Background(), SetFunds, started(), json.RawMessage(
		`{"bank_name":"Chase","bank_balance":50000,"gift_amount":10000,"gift_source":"parents"}`))

	require.True(t, resp.Success, resp.Message)
	primary := doer.body(t, 0)["primaryAssets"].(map[string]interface{})
	assets := primary["assets"].([]interface{})
	require.Len(t, assets, 1)
	assert.Equal(t, "Checking", assets[0].(map[string]interface{})["typeCode"])
	assert.Len(t, primary["giftFunds"], 1)
}

func TestCreateAccountCapturesAccountID(t *testing.T) {
	doer := &recordingDoer{reply: func(client.Call) *client.Reply {
		return &client.Reply{Body: json.RawMessage(`{"context":{"rmLoanId":"12345","rocketAccountId":"acct-1"}}`)}
	}}
	r := mortgageRegistry(doer)
	tc := started()

	resp := r.Execute(context.Background(), CreateAccount, tc, json.RawMessage(
		`{"first_name":"Jane","last_name":"Doe","email":"jane@example.com","password":"correct-horse"}`))

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "acct-1", tc.Session.RocketAccountID)
	assert.Equal(t, "https://example.com/done", doer.body(t, 0)["redirect"])

	tool, ok := r.Lookup(CreateAccount)
	require.True(t, ok)
	assert.True(t, tool.Sensitive)
}

func TestGetApplicationStatusTool(t *testing.T) {
	doer := &recordingDoer{reply: func(client.Call) *client.Reply {
		return &client.Reply{Body: json.RawMessage(`{"context":{"rmLoanId":"12345","creditReport":{"creditPullSucceeded":true}}}`)}
	}}
	r := mortgageRegistry(doer)

	resp := r.Execute(context.Background(), GetApplicationStatus, started(), nil)

	require.True(t, resp.Success, resp.Message)
	status := resp.Data.(models.ApplicationStatus)
	assert.Equal(t, models.StatusCreditReviewed, status.Status)
	assert.Equal(t, "GET", doer.calls[0].Method)
}
