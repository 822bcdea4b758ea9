package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseConstructors(t *testing.T) {
	ok := Success("created", Session{RmLoanID: "123"}, json.RawMessage(`{"context":{}}`))
	assert.True(t, ok.Success)
	assert.Equal(t, "123", ok.Data.RmLoanID)
	assert.JSONEq(t, `{"context":{}}`, string(ok.RawResponse))

	failed := Failure[Session]("Invalid rmLoanId format")
	assert.False(t, failed.Success)
	assert.Equal(t, "Invalid rmLoanId format", failed.Message)
	assert.False(t, failed.Data.Started())
}

func TestPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr bool
	}{
		{"valid location", Location{City: "Detroit", State: "MI", ZipCode: "48226"}, false},
		{"lowercase state", Location{City: "Detroit", State: "mi", ZipCode: "48226"}, true},
		{"zip plus four", Location{City: "Detroit", State: "MI", ZipCode: "48226-1234"}, false},
		{"short phone line", PhoneNumber{AreaCode: "313", Prefix: "555", Line: "12"}, true},
		{"contact with bad email", ContactInfo{FirstName: "A", LastName: "B", Email: "nope", PhoneNumber: PhoneNumber{"313", "555", "1234"}}, true},
		{"unknown occupancy", HomeDetails{Location: Location{"Detroit", "MI", "48226"}, OccupancyType: "weekend"}, true},
		{"home details without property type", HomeDetails{Location: Location{"Detroit", "MI", "48226"}, OccupancyType: OccupancyPrimary}, false},
		{"budget without price", HomePurchase{HasBudget: true}, true},
		{"minimum above desired", HomePurchase{HasBudget: true, DesiredPrice: 300000, MinimumPrice: 400000}, true},
		{"agent missing name", RealEstateAgent{HasAgent: true}, true},
		{"no agent", RealEstateAgent{}, false},
		{"served without branch", MilitaryService{Status: MilitaryPastDuty}, true},
		{"civilian", MilitaryService{Status: MilitaryNone}, false},
		{"bad expiration year", MilitaryService{Status: MilitaryReserve, Branch: BranchNavy, ExpirationDate: &ServiceExpiration{"1", "2", "27"}}, true},
		{"months out of range", Income{AnnualIncome: 1, IncomeType: IncomeEmployment, MonthsAtEmployer: 14}, true},
		{"gift without source", Funds{PrimaryAssets: PrimaryAssets{GiftFunds: []GiftFund{{GiftAmount: 1000}}}}, true},
		{"asset with bad type", Funds{PrimaryAssets: PrimaryAssets{Assets: []BankingAsset{{BankAmount: 10, BankName: "Ally", TypeCode: "Brokerage"}}}}, true},
		{"ssn last four", CreditPull{Birthdate: "1990-01-31", SSNLast4: "1234"}, false},
		{"ssn too long", CreditPull{Birthdate: "1990-01-31", SSNLast4: "12345"}, true},
		{"short password", Account{FirstName: "A", LastName: "B", Username: "a@b.co", Password: "short"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMilitaryServiceOmitsDetailsForCivilians(t *testing.T) {
	data, err := json.Marshal(MilitaryService{Status: MilitaryNone})
	require.NoError(t, err)
	assert.JSONEq(t, `{"militaryStatus":"none","eligibleForVA":false}`, string(data))
}

func TestStatusFromContext(t *testing.T) {
	assert.Equal(t, StatusInProgress, StatusFromContext("1", RocketContext{}).Status)

	credit := StatusFromContext("1", RocketContext{CreditReport: &CreditReport{Status: "Complete", PullSucceeded: true}})
	assert.Equal(t, StatusCreditReviewed, credit.Status)
	assert.Equal(t, "Complete", credit.CreditStatus)

	account := StatusFromContext("1", RocketContext{RocketAccountID: "acct-9"})
	assert.Equal(t, StatusAccountCreated, account.Status)
	assert.True(t, account.Terminal())
}

func TestParsePhoneNumber(t *testing.T) {
	for _, in := range []string{"313-555-1234", "(313) 555 1234", "+1 313.555.1234", "3135551234"} {
		phone, err := ParsePhoneNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, PhoneNumber{AreaCode: "313", Prefix: "555", Line: "1234"}, phone, in)
	}

	_, err := ParsePhoneNumber("555-1234")
	assert.Error(t, err)
}
