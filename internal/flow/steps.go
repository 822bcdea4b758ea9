package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rocket-approval/mortgage-agent/internal/google"
	"github.com/rocket-approval/mortgage-agent/internal/models"
	"github.com/rocket-approval/mortgage-agent/internal/tools"
)

var (
	// ErrDeclined ends the mortgage dialog without submitting anything.
	ErrDeclined = errors.New("declined")
	// ErrSkipTool completes a step without calling its tool.
	ErrSkipTool = errors.New("skip tool")
)

// Question is one prompt within a step.
type Question struct {
	Key       string
	Label     string
	Prompt    string
	Parse     Parser
	When      func(Answers) bool
	Optional  bool
	Sensitive bool
	Prefill   func(*google.Profile) string
}

func (q Question) applies(a Answers) bool {
	return q.When == nil || q.When(a)
}

// Step is a small form submitted through a single tool.
type Step struct {
	ID        string
	Title     string
	Intro     func(*State) string
	Questions []Question
	Skip      func(*State) bool
	Tool      string
	Input     func(*State) (interface{}, error)
	Done      func(*State, models.Response[any]) string
	// OnFailure returns a reply and whether the flow moves on anyway.
	OnFailure func(*State, models.Response[any]) (string, bool)
}

// Step IDs in flow order.
const (
	StepWelcome         = "welcome"
	StepPrefill         = "prefill"
	StepVerifyPrefill   = "verify_prefill"
	StepHomeDetails     = "home_details"
	StepHomePrice       = "home_price"
	StepRealEstateAgent = "real_estate_agent"
	StepLivingSituation = "living_situation"
	StepPersonalInfo    = "personal_info"
	StepContactInfo     = "contact_info"
	StepMaritalStatus   = "marital_status"
	StepMilitaryStatus  = "military_status"
	StepIncome          = "income"
	StepFunds           = "funds"
	StepCreditPull      = "credit_pull"
	StepCreateAccount   = "create_account"
	StepComplete        = "complete"
)

var (
	propertyChoices = Choices{
		{Value: string(models.PropertyTypeSingleFamily), Label: "Single family home", Aliases: []string{"house", "single family"}},
		{Value: string(models.PropertyTypeMultiFamily), Label: "Multi-family home", Aliases: []string{"multi family", "duplex"}},
		{Value: string(models.PropertyTypeCondo), Label: "Condo", Aliases: []string{"condominium"}},
		{Value: string(models.PropertyTypeTownhouse), Label: "Townhouse", Aliases: []string{"townhome"}},
	}
	occupancyChoices = Choices{
		{Value: string(models.OccupancyPrimary), Label: "Primary residence", Aliases: []string{"primary", "live there"}},
		{Value: string(models.OccupancyInvestment), Label: "Investment property", Aliases: []string{"rental"}},
		{Value: string(models.OccupancyVacation), Label: "Vacation home", Aliases: []string{"second home"}},
	}
	livingChoices = Choices{
		{Value: string(models.LivingRenter), Label: "Rent", Aliases: []string{"renter", "renting"}},
		{Value: string(models.LivingHomeowner), Label: "Own", Aliases: []string{"homeowner", "owner"}},
	}
	maritalChoices = Choices{
		{Value: string(models.MaritalMarried), Label: "Married"},
		{Value: string(models.MaritalSingle), Label: "Unmarried", Aliases: []string{"divorced", "widowed", "separated"}},
	}
	militaryChoices = Choices{
		{Value: string(models.MilitaryActiveDuty), Label: "Currently serving", Aliases: []string{"active", "active duty"}},
		{Value: string(models.MilitaryReserve), Label: "Reserve or National Guard", Aliases: []string{"national guard", "guard"}},
		{Value: string(models.MilitaryPastDuty), Label: "Veteran", Aliases: []string{"discharged", "retired"}},
		{Value: string(models.MilitaryNone), Label: "I have not served", Aliases: []string{"no", "never"}},
	}
	branchChoices = Choices{
		{Value: string(models.BranchArmy), Label: "Army"},
		{Value: string(models.BranchNavy), Label: "Navy"},
		{Value: string(models.BranchAirForce), Label: "Air Force"},
		{Value: string(models.BranchMarineCorps), Label: "Marine Corps", Aliases: []string{"marines"}},
		{Value: string(models.BranchSpaceForce), Label: "Space Force"},
		{Value: string(models.BranchCoastGuard), Label: "Coast Guard"},
	}
	serviceChoices = Choices{
		{Value: string(models.ServiceRegular), Label: "Regular military"},
		{Value: string(models.ServiceReserve), Label: "Reserves"},
	}
	incomeChoices = Choices{
		{Value: string(models.IncomeEmployment), Label: "Employed", Aliases: []string{"employment", "job", "w2"}},
		{Value: string(models.IncomeSelfEmployed), Label: "Self-employed", Aliases: []string{"self employed", "1099"}},
		{Value: string(models.IncomeUnemployment), Label: "Unemployment"},
		{Value: string(models.IncomeSocialSecurity), Label: "Social Security"},
		{Value: string(models.IncomePension), Label: "Pension", Aliases: []string{"retirement"}},
		{Value: string(models.IncomeOther), Label: "Other"},
	}
	accountChoices = Choices{
		{Value: string(models.AccountChecking), Label: "Checking"},
		{Value: string(models.AccountSavings), Label: "Savings"},
		{Value: string(models.AccountRetirement), Label: "Retirement (401k)", Aliases: []string{"401k", "retirement"}},
	}
)

func yes(key string) func(Answers) bool {
	return func(a Answers) bool { return a.Yes(key) }
}

func served(a Answers) bool {
	status := a["military_status"]
	return status != "" && status != string(models.MilitaryNone)
}

func employed(a Answers) bool {
	return a["income_type"] == string(models.IncomeEmployment)
}

func noInput(*State) (interface{}, error) {
	return struct{}{}, nil
}

func float(a Answers, key string) *float64 {
	if a[key] == "" {
		return nil
	}
	v := a.Float(key)
	return &v
}

// decode converts response data into a concrete type.
func decode(data interface{}, v interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Options tunes which optional steps are offered.
type Options struct {
	// Prefill offers to read the borrower's Google profile.
	Prefill bool
}

// DefaultSteps returns the purchase application flow.
func DefaultSteps(opts Options) []Step {
	steps := []Step{welcomeStep()}
	if opts.Prefill {
		steps = append(steps, prefillStep(), verifyPrefillStep())
	}
	return append(steps,
		homeDetailsStep(),
		homePriceStep(),
		agentStep(),
		livingSituationStep(),
		personalInfoStep(),
		contactInfoStep(),
		maritalStatusStep(),
		militaryStatusStep(),
		incomeStep(),
		fundsStep(),
		creditPullStep(),
		createAccountStep(),
		completeStep(),
	)
}

func welcomeStep() Step {
	return Step{
		ID:    StepWelcome,
		Title: "Welcome",
		Intro: func(*State) string {
			return "I'll walk you through a mortgage pre-approval for a home purchase. It takes about ten minutes, " +
				"and you can say \"back\", \"status\" or \"cancel\" at any point."
		},
		Questions: []Question{
			{Key: "ready", Label: "Ready", Prompt: "Are you ready to start your application? (yes/no)", Parse: ParseYesNo},
		},
		// Once the application exists there is nothing to go back to.
		Skip: func(st *State) bool { return st.Session.Started() },
		Tool: tools.StartMortgageApplication,
		Input: func(st *State) (interface{}, error) {
			if !st.Answers.Yes("ready") {
				return nil, ErrDeclined
			}
			if st.Session.Started() {
				return nil, ErrSkipTool
			}
			return struct{}{}, nil
		},
		Done: func(st *State, _ models.Response[any]) string {
			return fmt.Sprintf("Your application number is %s.", st.Session.RmLoanID)
		},
	}
}

func prefillStep() Step {
	return Step{
		ID:    StepPrefill,
		Title: "Google profile",
		Questions: []Question{
			{Key: "prefill", Label: "Use Google profile", Prompt: "Would you like me to fill in what I can from your Google profile? (yes/no)", Parse: ParseYesNo},
		},
		Tool: tools.GetUserInfo,
		Input: func(st *State) (interface{}, error) {
			if !st.Answers.Yes("prefill") {
				return nil, ErrSkipTool
			}
			return struct{}{}, nil
		},
		Done: func(st *State, resp models.Response[any]) string {
			if !st.Answers.Yes("prefill") {
				st.Prefilled = nil
				return "No problem, let's fill things in together."
			}
			var profile google.Profile
			if err := decode(resp.Data, &profile); err != nil {
				return "I couldn't read your Google profile, so let's fill things in together."
			}
			st.Prefilled = prefillAnswers(&profile)
			if len(st.Prefilled) == 0 {
				return "Your Google profile didn't have anything I can use, so let's fill things in together."
			}
			return "Thanks, I found a few details in your Google profile."
		},
		OnFailure: func(st *State, resp models.Response[any]) (string, bool) {
			var required tools.AuthorizationRequired
			if err := decode(resp.Data, &required); err == nil && required.AuthorizationURL != "" {
				return fmt.Sprintf("To use your Google profile, sign in at %s (or run \"mortgage-agent login\"). "+
					"We'll continue without it for now.", required.AuthorizationURL), true
			}
			return "I couldn't read your Google profile, so let's fill things in together.", true
		},
	}
}

func verifyPrefillStep() Step {
	return Step{
		ID:    StepVerifyPrefill,
		Title: "Confirm profile details",
		Skip:  func(st *State) bool { return len(st.Prefilled) == 0 },
		Intro: func(st *State) string {
			var b strings.Builder
			b.WriteString("Here's what I found:")
			seen := map[string]bool{}
			for _, step := range DefaultSteps(Options{}) {
				for _, q := range step.Questions {
					if v, ok := st.Prefilled[q.Key]; ok && !seen[q.Key] {
						seen[q.Key] = true
						fmt.Fprintf(&b, "\n  %s: %s", q.Label, v)
					}
				}
			}
			return b.String()
		},
		Questions: []Question{
			{Key: "prefill_ok", Label: "Profile details correct", Prompt: "Is this information correct? (yes/no)", Parse: ParseYesNo},
		},
		Input: func(st *State) (interface{}, error) {
			if st.Answers.Yes("prefill_ok") {
				for k, v := range st.Prefilled {
					st.Answers[k] = v
				}
			} else {
				st.Prefilled = nil
			}
			return nil, ErrSkipTool
		},
		Done: func(st *State, _ models.Response[any]) string {
			if len(st.Prefilled) == 0 {
				return "No problem, I'll ask for those details as we go."
			}
			return "Great, I'll skip those questions."
		},
	}
}

// prefillAnswers maps profile fields onto question answers that parse cleanly.
func prefillAnswers(profile *google.Profile) Answers {
	out := Answers{}
	for _, step := range DefaultSteps(Options{}) {
		for _, q := range step.Questions {
			if q.Prefill == nil {
				continue
			}
			raw := q.Prefill(profile)
			if raw == "" {
				continue
			}
			if v, err := q.Parse(raw); err == nil {
				out[q.Key] = v
			}
		}
	}
	return out
}

func homeDetailsStep() Step {
	return Step{
		ID:    StepHomeDetails,
		Title: "New home details",
		Questions: []Question{
			{Key: "found_home", Label: "Found a home", Prompt: "Have you already found the home you want to buy? (yes/no)", Parse: ParseYesNo},
			{Key: "new_home_location", Label: "New home location",
				Prompt: "Where is the home, or where do you plan to buy? (City, ST 12345)", Parse: ParseLocation},
			{Key: "property_type", Label: "Property type", Prompt: "What type of property is it?" + propertyChoices.Menu(),
				Parse: propertyChoices.Parse, Optional: true},
			{Key: "occupancy", Label: "Occupancy", Prompt: "How will you use the home?" + occupancyChoices.Menu(),
				Parse: occupancyChoices.Parse},
		},
		Tool: tools.SetNewHomeDetails,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			city, state, zip := splitLocation(a["new_home_location"])
			return tools.HomeDetailsInput{
				City:          city,
				State:         state,
				ZipCode:       zip,
				PropertyType:  models.PropertyType(a["property_type"]),
				OccupancyType: models.OccupancyType(a["occupancy"]),
				FoundNewHome:  a.Yes("found_home"),
			}, nil
		},
	}
}

func homePriceStep() Step {
	return Step{
		ID:    StepHomePrice,
		Title: "Home price",
		Questions: []Question{
			{Key: "has_budget", Label: "Has a budget", Prompt: "Do you have a purchase price in mind? (yes/no)", Parse: ParseYesNo},
			{Key: "desired_price", Label: "Desired price", Prompt: "What price are you aiming for?", Parse: ParseMoney, When: yes("has_budget")},
			{Key: "minimum_price", Label: "Lowest price", Prompt: "What's the lowest price you'd consider?",
				Parse: ParseMoney, When: yes("has_budget"), Optional: true},
		},
		Tool: tools.SetHomePrice,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			in := tools.HomePriceInput{HasBudget: a.Yes("has_budget")}
			if in.HasBudget {
				in.DesiredPrice = a.Float("desired_price")
				in.MinimumPrice = a.Float("minimum_price")
			}
			return in, nil
		},
	}
}

func agentStep() Step {
	return Step{
		ID:    StepRealEstateAgent,
		Title: "Real estate agent",
		Questions: []Question{
			{Key: "has_agent", Label: "Has an agent", Prompt: "Are you working with a real estate agent? (yes/no)", Parse: ParseYesNo},
			{Key: "agent_name", Label: "Agent name", Prompt: "What is your agent's full name?", Parse: ParseName, When: yes("has_agent")},
			{Key: "agent_email", Label: "Agent e-mail", Prompt: "What is your agent's e-mail?", Parse: ParseEmail,
				When: yes("has_agent"), Optional: true},
			{Key: "agent_phone", Label: "Agent phone", Prompt: "What is your agent's phone number?", Parse: ParsePhone,
				When: yes("has_agent"), Optional: true},
		},
		Tool: tools.SetRealEstateAgent,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			in := tools.RealEstateAgentInput{HasAgent: a.Yes("has_agent")}
			if in.HasAgent {
				in.FirstName, in.LastName = splitName(a["agent_name"])
				in.Email = a["agent_email"]
				in.Phone = a["agent_phone"]
			}
			return in, nil
		},
	}
}

func livingSituationStep() Step {
	return Step{
		ID:    StepLivingSituation,
		Title: "Current address",
		Questions: []Question{
			{Key: "living_situation", Label: "Rent or own", Prompt: "Do you currently rent or own?" + livingChoices.Menu(), Parse: livingChoices.Parse},
			{Key: "street", Label: "Street", Prompt: "What is your current street address?", Parse: ParseText,
				Prefill: func(p *google.Profile) string { return p.Street }},
			{Key: "street2", Label: "Unit", Prompt: "Apartment or unit number?", Parse: ParseText, Optional: true,
				Prefill: func(p *google.Profile) string { return p.Street2 }},
			{Key: "current_location", Label: "City, state and ZIP", Prompt: "City, state and ZIP code? (City, ST 12345)", Parse: ParseLocation,
				Prefill: func(p *google.Profile) string {
					if p.City == "" || p.State == "" || p.ZipCode == "" {
						return ""
					}
					return fmt.Sprintf("%s, %s %s", p.City, p.State, p.ZipCode)
				}},
		},
		Tool: tools.SetLivingSituation,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			city, state, zip := splitLocation(a["current_location"])
			return tools.LivingSituationInput{
				Situation: models.LivingSituationType(a["living_situation"]),
				Street:    a["street"],
				Street2:   a["street2"],
				City:      city,
				State:     state,
				ZipCode:   zip,
			}, nil
		},
	}
}

func personalInfoStep() Step {
	return Step{
		ID:    StepPersonalInfo,
		Title: "Personal information",
		Questions: []Question{
			{Key: "full_name", Label: "Full name", Prompt: "What is your full legal name?", Parse: ParseName,
				Prefill: func(p *google.Profile) string { return strings.TrimSpace(p.FirstName + " " + p.LastName) }},
			{Key: "date_of_birth", Label: "Date of birth", Prompt: "What is your date of birth? (MM/DD/YYYY)", Parse: ParseBirthdate,
				Prefill: func(p *google.Profile) string { return p.Birthdate }},
		},
		Tool: tools.SetPersonalInfo,
		Input: func(st *State) (interface{}, error) {
			first, last := splitName(st.Answers["full_name"])
			return tools.PersonalInfoInput{
				FirstName:   first,
				LastName:    last,
				DateOfBirth: st.Answers["date_of_birth"],
			}, nil
		},
	}
}

func contactInfoStep() Step {
	return Step{
		ID:    StepContactInfo,
		Title: "Contact information",
		Questions: []Question{
			{Key: "email", Label: "E-mail", Prompt: "What e-mail address should we use?", Parse: ParseEmail,
				Prefill: func(p *google.Profile) string { return p.Email }},
			{Key: "phone", Label: "Phone", Prompt: "What is the best phone number to reach you?", Parse: ParsePhone,
				Prefill: func(p *google.Profile) string { return p.Phone }},
			{Key: "sms_consent", Label: "Text messages", Prompt: "Can we send you promotional text messages? (yes/no)", Parse: ParseYesNo},
		},
		Tool: tools.SetContactInfo,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			first, last := splitName(a["full_name"])
			return tools.ContactInfoInput{
				FirstName:  first,
				LastName:   last,
				Email:      a["email"],
				Phone:      a["phone"],
				SMSConsent: a.Yes("sms_consent"),
			}, nil
		},
	}
}

func maritalStatusStep() Step {
	return Step{
		ID:    StepMaritalStatus,
		Title: "Marital status",
		Questions: []Question{
			{Key: "marital_status", Label: "Marital status", Prompt: "What is your marital status?" + maritalChoices.Menu(), Parse: maritalChoices.Parse},
			{Key: "spouse_on_loan", Label: "Spouse on loan", Prompt: "Will your spouse be on the loan? (yes/no)", Parse: ParseYesNo,
				When: func(a Answers) bool { return a["marital_status"] == string(models.MaritalMarried) }},
		},
		Tool: tools.SetMaritalStatus,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			return tools.MaritalStatusInput{
				MaritalStatus: models.MaritalStatus(a["marital_status"]),
				SpouseOnLoan:  a["marital_status"] == string(models.MaritalMarried) && a.Yes("spouse_on_loan"),
			}, nil
		},
	}
}

func militaryStatusStep() Step {
	return Step{
		ID:    StepMilitaryStatus,
		Title: "Military service",
		Questions: []Question{
			{Key: "military_status", Label: "Military service", Prompt: "Have you served in the military?" + militaryChoices.Menu(), Parse: militaryChoices.Parse},
			{Key: "military_branch", Label: "Branch", Prompt: "Which branch?" + branchChoices.Menu(), Parse: branchChoices.Parse, When: served},
			{Key: "service_type", Label: "Service type", Prompt: "What type of service?" + serviceChoices.Menu(),
				Parse: serviceChoices.Parse, When: served, Optional: true},
			{Key: "service_expiration", Label: "Service end date", Prompt: "When does your current service end? (MM/DD/YYYY)",
				Parse: ParseDate, Optional: true, When: func(a Answers) bool {
					return a["military_status"] == string(models.MilitaryActiveDuty) || a["military_status"] == string(models.MilitaryReserve)
				}},
			{Key: "eligible_for_va", Label: "VA eligible", Prompt: "Are you eligible for a VA loan? (yes/no)", Parse: ParseYesNo, When: served},
		},
		Tool: tools.SetMilitaryStatus,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			in := tools.MilitaryStatusInput{Status: models.MilitaryStatus(a["military_status"])}
			if served(a) {
				in.Branch = models.MilitaryBranch(a["military_branch"])
				in.ServiceType = models.ServiceType(a["service_type"])
				in.EligibleForVA = a.Yes("eligible_for_va")
				if a["military_status"] != string(models.MilitaryPastDuty) {
					in.ServiceExpiration = a["service_expiration"]
				}
			}
			return in, nil
		},
	}
}

func incomeStep() Step {
	return Step{
		ID:    StepIncome,
		Title: "Income",
		Questions: []Question{
			{Key: "income_type", Label: "Income source", Prompt: "What is your main source of income?" + incomeChoices.Menu(), Parse: incomeChoices.Parse},
			{Key: "annual_income", Label: "Annual income", Prompt: "What is your gross annual income?", Parse: ParseMoney},
			{Key: "employer_name", Label: "Employer", Prompt: "Who is your employer?", Parse: ParseText, When: employed,
				Prefill: func(p *google.Profile) string { return p.Employer }},
			{Key: "job_title", Label: "Job title", Prompt: "What is your job title?", Parse: ParseText, When: employed, Optional: true,
				Prefill: func(p *google.Profile) string { return p.JobTitle }},
			{Key: "years_at_employer", Label: "Years at employer", Prompt: "How many years have you worked there?",
				Parse: ParseCount, When: employed, Optional: true},
		},
		Tool: tools.SetIncome,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			in := tools.IncomeInput{
				AnnualIncome: a.Float("annual_income"),
				IncomeType:   models.IncomeType(a["income_type"]),
			}
			if employed(a) {
				in.EmployerName = a["employer_name"]
				in.JobTitle = a["job_title"]
				in.YearsAtEmployer = a.Int("years_at_employer")
			}
			return in, nil
		},
	}
}

func fundsStep() Step {
	hasGift := func(a Answers) bool { return a.Float("gift_amount") > 0 }
	return Step{
		ID:    StepFunds,
		Title: "Funds for your purchase",
		Questions: []Question{
			{Key: "bank_name", Label: "Bank", Prompt: "Where do you keep the money for your down payment?", Parse: ParseText},
			{Key: "account_type", Label: "Account type", Prompt: "What kind of account is it?" + accountChoices.Menu(), Parse: accountChoices.Parse},
			{Key: "bank_balance", Label: "Balance", Prompt: "About how much is in that account?", Parse: ParseMoney},
			{Key: "gift_amount", Label: "Gift funds", Prompt: "Will anyone gift you money toward the purchase? Enter the amount.",
				Parse: ParseMoney, Optional: true},
			{Key: "gift_source", Label: "Gift from", Prompt: "Who is the gift from?", Parse: ParseText, When: hasGift},
			{Key: "down_payment", Label: "Down payment %", Prompt: "What percentage do you plan to put down?", Parse: ParsePercent, Optional: true},
		},
		Tool: tools.SetFunds,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			in := tools.FundsInput{
				BankName:              a["bank_name"],
				BankBalance:           a.Float("bank_balance"),
				AccountType:           models.AccountType(a["account_type"]),
				DownPaymentPercentage: float(a, "down_payment"),
			}
			if hasGift(a) {
				in.GiftAmount = a.Float("gift_amount")
				in.GiftSource = a["gift_source"]
			}
			return in, nil
		},
	}
}

func creditPullStep() Step {
	return Step{
		ID:    StepCreditPull,
		Title: "Soft credit check",
		Intro: func(*State) string {
			return "Next I'll run a soft credit check. It won't affect your credit score."
		},
		Questions: []Question{
			{Key: "date_of_birth", Label: "Date of birth", Prompt: "What is your date of birth? (MM/DD/YYYY)", Parse: ParseBirthdate,
				When: func(a Answers) bool { return a["date_of_birth"] == "" }},
			{Key: "ssn_last4", Label: "SSN (last 4)", Prompt: "What are the last 4 digits of your Social Security number?",
				Parse: ParseSSN4, Sensitive: true},
		},
		Tool: tools.DoSoftCreditPull,
		Input: func(st *State) (interface{}, error) {
			return tools.CreditPullInput{
				Birthdate: st.Answers["date_of_birth"],
				SSNLast4:  st.Answers["ssn_last4"],
			}, nil
		},
		Done: func(*State, models.Response[any]) string {
			return "Your soft credit check has been submitted."
		},
	}
}

func createAccountStep() Step {
	return Step{
		ID:    StepCreateAccount,
		Title: "Create your account",
		Intro: func(st *State) string {
			return fmt.Sprintf("Last step: I'll create your online account with the username %s.", st.Answers["email"])
		},
		Questions: []Question{
			{Key: "password", Label: "Password", Prompt: "Choose a password (8 to 64 characters).", Parse: ParsePassword, Sensitive: true},
		},
		Tool: tools.CreateAccount,
		Input: func(st *State) (interface{}, error) {
			a := st.Answers
			first, last := splitName(a["full_name"])
			return tools.AccountInput{
				FirstName: first,
				LastName:  last,
				Email:     a["email"],
				Password:  a["password"],
			}, nil
		},
		Done: func(st *State, _ models.Response[any]) string {
			return "Your account has been created."
		},
	}
}

func completeStep() Step {
	return Step{
		ID:    StepComplete,
		Title: "Application summary",
		Tool:  tools.GetApplicationStatus,
		Input: noInput,
		Done: func(st *State, resp models.Response[any]) string {
			var status models.ApplicationStatus
			_ = decode(resp.Data, &status)
			return summary(st, status.Status)
		},
		OnFailure: func(st *State, resp models.Response[any]) (string, bool) {
			return summary(st, ""), true
		},
	}
}

func summary(st *State, status string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Congratulations, your application %s is complete!", st.Session.RmLoanID)
	if status != "" {
		fmt.Fprintf(&b, "\n  Status: %s", status)
	}
	if st.Session.RocketAccountID != "" {
		fmt.Fprintf(&b, "\n  Account: %s", st.Session.RocketAccountID)
	}
	if loc := st.Answers["new_home_location"]; loc != "" {
		fmt.Fprintf(&b, "\n  Buying in: %s", loc)
	}
	if price := st.Answers["desired_price"]; price != "" {
		fmt.Fprintf(&b, "\n  Target price: $%s", price)
	}
	b.WriteString("\nA loan officer will review it and reach out. Say \"status\" any time to check on it.")
	return b.String()
}
