package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rocket-approval/mortgage-agent/internal/models"
	"github.com/rocket-approval/mortgage-agent/internal/services"
)

const (
	StartMortgageApplication = "RocketApproval.StartMortgageApplication"
	GetApplicationStatus     = "RocketApproval.GetApplicationStatus"
	SetNewHomeDetails        = "RocketApproval.SetNewHomeDetails"
	SetHomePrice             = "RocketApproval.SetHomePrice"
	SetRealEstateAgent       = "RocketApproval.SetRealEstateAgent"
	SetLivingSituation       = "RocketApproval.SetLivingSituation"
	SetPersonalInfo          = "RocketApproval.SetPersonalInfo"
	SetContactInfo           = "RocketApproval.SetContactInfo"
	SetMaritalStatus         = "RocketApproval.SetMaritalStatus"
	SetMilitaryStatus        = "RocketApproval.SetMilitaryStatus"
	SetIncome                = "RocketApproval.SetIncome"
	SetFunds                 = "RocketApproval.SetFunds"
	DoSoftCreditPull         = "RocketApproval.DoSoftCreditPull"
	CreateAccount            = "RocketApproval.CreateAccount"
)

// ApplicationAPI is the mortgage application backend the tools drive.
type ApplicationAPI interface {
	StartApplication(ctx context.Context) (services.StepResult, error)
	GetApplicationStatus(ctx context.Context, sess models.Session) (models.ApplicationStatus, error)
	SetHomeDetails(ctx context.Context, sess models.Session, details models.HomeDetails) (services.StepResult, error)
	SetHomePrice(ctx context.Context, sess models.Session, purchase models.HomePurchase) (services.StepResult, error)
	SetRealEstateAgent(ctx context.Context, sess models.Session, agent models.RealEstateAgent) (services.StepResult, error)
	SetLivingSituation(ctx context.Context, sess models.Session, situation models.LivingSituation) (services.StepResult, error)
	SetPersonalInfo(ctx context.Context, sess models.Session, info models.PersonalInfo) (services.StepResult, error)
	SetContactInfo(ctx context.Context, sess models.Session, info models.ContactInfo) (services.StepResult, error)
	SetMaritalStatus(ctx context.Context, sess models.Session, status models.MaritalStatus, spouseOnLoan bool) (services.StepResult, error)
	SetMilitaryStatus(ctx context.Context, sess models.Session, service models.MilitaryService) (services.StepResult, error)
	SetIncome(ctx context.Context, sess models.Session, income models.Income) (services.StepResult, error)
	SetFunds(ctx context.Context, sess models.Session, funds models.Funds) (services.StepResult, error)
	SoftCreditPull(ctx context.Context, sess models.Session, pull models.CreditPull) (services.StepResult, error)
	CreateAccount(ctx context.Context, sess models.Session, account models.Account) (services.StepResult, error)
}

type HomeDetailsInput struct {
	City          string               `json:"new_home_city"`
	State         string               `json:"new_home_state"`
	ZipCode       string               `json:"new_home_zip_code"`
	PropertyType  models.PropertyType  `json:"property_type,omitempty"`
	OccupancyType models.OccupancyType `json:"new_home_occupancy_type,omitempty"`
	FoundNewHome  bool                 `json:"found_new_home"`
}

type HomePriceInput struct {
	HasBudget    bool    `json:"has_budget"`
	DesiredPrice float64 `json:"desired_price"`
	MinimumPrice float64 `json:"minimum_price,omitempty"`
}

type RealEstateAgentInput struct {
	HasAgent  bool   `json:"has_agent"`
	FirstName string `json:"agent_first_name,omitempty"`
	LastName  string `json:"agent_last_name,omitempty"`
	Email     string `json:"agent_email,omitempty"`
	Phone     string `json:"agent_phone,omitempty"`
}

type LivingSituationInput struct {
	Situation models.LivingSituationType `json:"living_situation"`
	Street    string                     `json:"street"`
	Street2   string                     `json:"street2,omitempty"`
	City      string                     `json:"city"`
	State     string                     `json:"state"`
	ZipCode   string                     `json:"zip_code"`
}

type PersonalInfoInput struct {
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	DateOfBirth   string               `json:"date_of_birth,omitempty"`
	MaritalStatus models.MaritalStatus `json:"marital_status,omitempty"`
	SpouseOnLoan  *bool                `json:"is_spouse_on_loan,omitempty"`
}

type ContactInfoInput struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone_number"`
	SMSConsent bool   `json:"sms_consent"`
}

type MaritalStatusInput struct {
	MaritalStatus models.MaritalStatus `json:"marital_status"`
	SpouseOnLoan  bool                 `json:"is_spouse_on_loan,omitempty"`
}

type MilitaryStatusInput struct {
	Status            models.MilitaryStatus `json:"military_status"`
	Branch            models.MilitaryBranch `json:"military_branch,omitempty"`
	ServiceType       models.ServiceType    `json:"service_type,omitempty"`
	ServiceExpiration string                `json:"service_expiration,omitempty"`
	EligibleForVA     bool                  `json:"eligible_for_va"`
}

type IncomeInput struct {
	AnnualIncome     float64           `json:"annual_income"`
	IncomeType       models.IncomeType `json:"income_type,omitempty"`
	EmployerName     string            `json:"employer_name,omitempty"`
	JobTitle         string            `json:"job_title,omitempty"`
	YearsAtEmployer  int               `json:"years_at_employer,omitempty"`
	MonthsAtEmployer int               `json:"months_at_employer,omitempty"`
}

type FundsInput struct {
	BankName              string             `json:"bank_name"`
	BankBalance           float64            `json:"bank_balance"`
	AccountType           models.AccountType `json:"account_type,omitempty"`
	GiftAmount            float64            `json:"gift_amount,omitempty"`
	GiftSource            string             `json:"gift_source,omitempty"`
	HomeSaleListingPrice  float64            `json:"home_sale_listing_price,omitempty"`
	HomeSaleBalance       float64            `json:"home_sale_balance,omitempty"`
	DownPaymentPercentage *float64           `json:"down_payment_percentage,omitempty"`
}

type CreditPullInput struct {
	Birthdate string `json:"birthdate"`
	SSNLast4  string `json:"ssn_last4"`
	FullSSN   string `json:"full_ssn,omitempty"`
}

type AccountInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func withSession(params ...Param) []Param {
	return append(params,
		Param{Name: "rm_loan_id", Description: "loan ID from StartMortgageApplication"},
		Param{Name: "session_token", Description: "session token from StartMortgageApplication"},
	)
}

func required(name, description string) Param {
	return Param{Name: name, Description: description, Required: true, Inferrable: true}
}

func optional(name, description string) Param {
	return Param{Name: name, Description: description, Inferrable: true}
}

func stepResponse(message string, result services.StepResult) models.Response[any] {
	return models.Success[any](message, result.Session, result.Raw)
}

// RegisterMortgageTools adds one tool per application API step.
func RegisterMortgageTools(r *Registry, api ApplicationAPI) {
	r.Register(Tool{
		Name:        StartMortgageApplication,
		Description: "Start a new mortgage application and get a session token and rmLoanId.",
		Handler: typed(func(ctx context.Context, tc *Context, _ struct{}) (models.Response[any], error) {
			result, err := api.StartApplication(ctx)
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse(fmt.Sprintf("Application %s started", result.Session.RmLoanID), result), nil
		}),
	})

	r.Register(Tool{
		Name:        GetApplicationStatus,
		Description: "Get the status of the current purchase application.",
		Params:      withSession(),
		Handler: typed(func(ctx context.Context, tc *Context, _ struct{}) (models.Response[any], error) {
			status, err := api.GetApplicationStatus(ctx, tc.Session)
			if err != nil {
				return models.Response[any]{}, err
			}
			return models.Success[any](fmt.Sprintf("Application %s is %s", status.RmLoanID, status.Status), status, nil), nil
		}),
	})

	r.Register(Tool{
		Name:        SetNewHomeDetails,
		Description: "Record whether the user has found a new home and where they plan to live.",
		Params: withSession(
			required("new_home_city", "City of the new home"),
			required("new_home_state", "Two letter state of the new home"),
			required("new_home_zip_code", "Zip code of the new home"),
			optional("property_type", "single, multi, condo or townhouse"),
			optional("new_home_occupancy_type", "primary, investment or vacation (default primary)"),
			optional("found_new_home", "Whether the user has found a new home"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in HomeDetailsInput) (models.Response[any], error) {
			occupancy := in.OccupancyType
			if occupancy == "" {
				occupancy = models.OccupancyPrimary
			}
			result, err := api.SetHomeDetails(ctx, tc.Session, models.HomeDetails{
				FoundHome:     in.FoundNewHome,
				Location:      models.Location{City: in.City, State: strings.ToUpper(in.State), ZipCode: in.ZipCode},
				PropertyType:  in.PropertyType,
				OccupancyType: occupancy,
			})
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Home details set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetHomePrice,
		Description: "Record the user's purchase budget.",
		Params: withSession(
			required("has_budget", "Whether the user has a budget in mind"),
			optional("desired_price", "Target purchase price"),
			optional("minimum_price", "Lowest price the user would consider"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in HomePriceInput) (models.Response[any], error) {
			result, err := api.SetHomePrice(ctx, tc.Session, models.HomePurchase(in))
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Home price set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetRealEstateAgent,
		Description: "Record whether the user works with a real estate agent.",
		Params: withSession(
			required("has_agent", "Whether the user has an agent"),
			optional("agent_first_name", "Agent first name"),
			optional("agent_last_name", "Agent last name"),
			optional("agent_email", "Agent e-mail"),
			optional("agent_phone", "Agent work phone"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in RealEstateAgentInput) (models.Response[any], error) {
			result, err := api.SetRealEstateAgent(ctx, tc.Session, models.RealEstateAgent{
				HasAgent:     in.HasAgent,
				FirstName:    in.FirstName,
				LastName:     in.LastName,
				EmailAddress: in.Email,
				WorkPhone:    in.Phone,
			})
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Real estate agent set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetLivingSituation,
		Description: "Record whether the user rents or owns and their current address.",
		Params: withSession(
			required("living_situation", "Renter or Homeowner"),
			required("street", "Street address"),
			optional("street2", "Apartment or unit"),
			required("city", "City"),
			required("state", "Two letter state"),
			required("zip_code", "Zip code"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in LivingSituationInput) (models.Response[any], error) {
			result, err := api.SetLivingSituation(ctx, tc.Session, models.LivingSituation{
				Type: in.Situation,
				Address: models.Address{
					Street:  in.Street,
					Street2: in.Street2,
					City:    in.City,
					State:   strings.ToUpper(in.State),
					ZipCode: in.ZipCode,
				},
			})
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Living situation set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetPersonalInfo,
		Description: "Record the borrower's name and date of birth.",
		Params: withSession(
			required("first_name", "First name"),
			required("last_name", "Last name"),
			optional("date_of_birth", "YYYY-MM-DD"),
			optional("marital_status", "married or single"),
			optional("is_spouse_on_loan", "Whether the spouse is on the loan"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in PersonalInfoInput) (models.Response[any], error) {
			result, err := api.SetPersonalInfo(ctx, tc.Session, models.PersonalInfo{
				FirstName:      in.FirstName,
				LastName:       in.LastName,
				DateOfBirth:    in.DateOfBirth,
				MaritalStatus:  in.MaritalStatus,
				IsSpouseOnLoan: in.SpouseOnLoan,
			})
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Personal info set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetContactInfo,
		Description: "Record the borrower's e-mail and phone number.",
		Params: withSession(
			required("first_name", "First name"),
			required("last_name", "Last name"),
			required("email", "E-mail address"),
			required("phone_number", "Ten digit US phone number"),
			optional("sms_consent", "Whether the user agrees to promotional SMS"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in ContactInfoInput) (models.Response[any], error) {
			phone, err := models.ParsePhoneNumber(in.Phone)
			if err != nil {
				return models.Response[any]{}, err
			}
			result, err := api.SetContactInfo(ctx, tc.Session, models.ContactInfo{
				FirstName:                in.FirstName,
				LastName:                 in.LastName,
				Email:                    in.Email,
				PhoneNumber:              phone,
				HasPromotionalSMSConsent: in.SMSConsent,
			})
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Contact info set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetMaritalStatus,
		Description: "Record the borrower's marital status.",
		Params: withSession(
			required("marital_status", "married or single"),
			optional("is_spouse_on_loan", "Whether the spouse is on the loan"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in MaritalStatusInput) (models.Response[any], error) {
			result, err := api.SetMaritalStatus(ctx, tc.Session, in.MaritalStatus, in.SpouseOnLoan)
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Marital status set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetMilitaryStatus,
		Description: "Record the borrower's military service.",
		Params: withSession(
			required("military_status", "currentlyServing, reserve, dischgd or none"),
			optional("military_branch", "army, navy, airForce, marineCorps, spaceForce or coastGuard"),
			optional("service_type", "regularMilitary or reserves"),
			optional("service_expiration", "YYYY-MM-DD end of service"),
			optional("eligible_for_va", "Whether the borrower is eligible for a VA loan"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in MilitaryStatusInput) (models.Response[any], error) {
			service := models.MilitaryService{
				Status:        in.Status,
				EligibleForVA: in.EligibleForVA,
				Branch:        in.Branch,
				ServiceType:   in.ServiceType,
			}
			if in.ServiceExpiration != "" {
				end, err := time.Parse("2006-01-02", in.ServiceExpiration)
				if err != nil {
					return models.Response[any]{}, fmt.Errorf("service_expiration must be YYYY-MM-DD: %w", err)
				}
				service.ExpirationDate = &models.ServiceExpiration{
					Day:   fmt.Sprint(end.Day()),
					Month: fmt.Sprint(int(end.Month())),
					Year:  fmt.Sprint(end.Year()),
				}
			}
			result, err := api.SetMilitaryStatus(ctx, tc.Session, service)
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Military status set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetIncome,
		Description: "Record the borrower's annual income and employer.",
		Params: withSession(
			required("annual_income", "Gross annual income"),
			optional("income_type", "Employment, Self-Employed, Unemployment, Social Security, Pension or Other"),
			optional("employer_name", "Current employer"),
			optional("job_title", "Job title"),
			optional("years_at_employer", "Whole years with the employer"),
			optional("months_at_employer", "Additional months with the employer"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in IncomeInput) (models.Response[any], error) {
			result, err := api.SetIncome(ctx, tc.Session, models.Income(in))
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Income set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        SetFunds,
		Description: "Record the funds available for the down payment and closing.",
		Params: withSession(
			required("bank_name", "Bank holding the funds"),
			required("bank_balance", "Balance available"),
			optional("account_type", "Checking, Savings or Retirement401k"),
			optional("gift_amount", "Gift funds amount"),
			optional("gift_source", "Who the gift comes from"),
			optional("home_sale_listing_price", "Listing price of a home being sold"),
			optional("home_sale_balance", "Remaining mortgage on the home being sold"),
			optional("down_payment_percentage", "Planned down payment percentage"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in FundsInput) (models.Response[any], error) {
			accountType := in.AccountType
			if accountType == "" {
				accountType = models.AccountChecking
			}
			primary := models.PrimaryAssets{
				Assets: []models.BankingAsset{{BankAmount: in.BankBalance, BankName: in.BankName, TypeCode: accountType}},
			}
			if in.GiftAmount > 0 {
				primary.GiftFunds = []models.GiftFund{{GiftAmount: in.GiftAmount, Source: in.GiftSource}}
			}
			if in.HomeSaleListingPrice > 0 {
				primary.ProceedsFromHomeSale = &models.ProceedsFromHomeSale{
					ListingPrice:   in.HomeSaleListingPrice,
					CurrentBalance: in.HomeSaleBalance,
				}
			}
			result, err := api.SetFunds(ctx, tc.Session, models.Funds{
				PrimaryAssets:         primary,
				DownPaymentPercentage: in.DownPaymentPercentage,
			})
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Funds set successfully", result), nil
		}),
	})

	r.Register(Tool{
		Name:        DoSoftCreditPull,
		Description: "Run a soft credit check using the borrower's birthdate and SSN.",
		Sensitive:   true,
		Params: withSession(
			required("birthdate", "YYYY-MM-DD"),
			required("ssn_last4", "Last four digits of the SSN"),
			optional("full_ssn", "Full nine digit SSN"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in CreditPullInput) (models.Response[any], error) {
			result, err := api.SoftCreditPull(ctx, tc.Session, models.CreditPull(in))
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Soft credit pull submitted", result), nil
		}),
	})

	r.Register(Tool{
		Name:        CreateAccount,
		Description: "Create the borrower's online account for this application.",
		Sensitive:   true,
		Params: withSession(
			required("first_name", "First name"),
			required("last_name", "Last name"),
			required("email", "E-mail used as the username"),
			required("password", "Account password"),
		),
		Handler: typed(func(ctx context.Context, tc *Context, in AccountInput) (models.Response[any], error) {
			result, err := api.CreateAccount(ctx, tc.Session, models.Account{
				FirstName: in.FirstName,
				LastName:  in.LastName,
				Username:  in.Email,
				Password:  in.Password,
			})
			if err != nil {
				return models.Response[any]{}, err
			}
			return stepResponse("Account created", result), nil
		}),
	})
}
