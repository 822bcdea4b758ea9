package models

import (
	"errors"
	"regexp"

	"github.com/jellydator/validation"
)

var (
	stateRe    = regexp.MustCompile(`^[A-Z]{2}$`)
	zipRe      = regexp.MustCompile(`^\d{5}(-?\d{4})?$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	threeRe    = regexp.MustCompile(`^\d{3}$`)
	fourRe     = regexp.MustCompile(`^\d{4}$`)
	ssnRe      = regexp.MustCompile(`^\d{9}$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dayRe      = regexp.MustCompile(`^\d{1,2}$`)
	fullYearRe = regexp.MustCompile(`^\d{4}$`)
)

type PhoneNumber struct {
	AreaCode string `json:"areaCode"`
	Prefix   string `json:"prefix"`
	Line     string `json:"line"`
}

func (p PhoneNumber) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.AreaCode, validation.Required, validation.Match(threeRe)),
		validation.Field(&p.Prefix, validation.Required, validation.Match(threeRe)),
		validation.Field(&p.Line, validation.Required, validation.Match(fourRe)),
	)
}

func (p PhoneNumber) String() string {
	return "(" + p.AreaCode + ") " + p.Prefix + "-" + p.Line
}

type Address struct {
	Street  string `json:"street"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

func (a Address) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Street, validation.Required),
		validation.Field(&a.City, validation.Required),
		validation.Field(&a.State, validation.Required, validation.Match(stateRe)),
		validation.Field(&a.ZipCode, validation.Required, validation.Match(zipRe)),
	)
}

type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

func (l Location) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.City, validation.Required),
		validation.Field(&l.State, validation.Required, validation.Match(stateRe)),
		validation.Field(&l.ZipCode, validation.Required, validation.Match(zipRe)),
	)
}

type LivingSituation struct {
	Type    LivingSituationType `json:"type"`
	Address Address             `json:"address"`
}

func (l LivingSituation) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Type, validation.Required, validation.In(livingTypes...)),
		validation.Field(&l.Address),
	)
}

type HomeDetails struct {
	FoundHome     bool          `json:"-"`
	Location      Location      `json:"location"`
	PropertyType  PropertyType  `json:"propertyType,omitempty"`
	OccupancyType OccupancyType `json:"occupancyType"`
}

func (h HomeDetails) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Location),
		validation.Field(&h.PropertyType, validation.In(propertyTypes...)),
		validation.Field(&h.OccupancyType, validation.Required, validation.In(occupancyTypes...)),
	)
}

type HomePurchase struct {
	HasBudget    bool    `json:"hasBudget"`
	DesiredPrice float64 `json:"desiredPrice"`
	MinimumPrice float64 `json:"minimumPrice"`
}

func (h HomePurchase) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.DesiredPrice, validation.Min(0.0), validation.When(h.HasBudget, validation.Required)),
		validation.Field(&h.MinimumPrice, validation.Min(0.0), validation.By(func(interface{}) error {
			if h.DesiredPrice > 0 && h.MinimumPrice > h.DesiredPrice {
				return errors.New("must not exceed the desired price")
			}
			return nil
		})),
	)
}

type RealEstateAgent struct {
	HasAgent     bool   `json:"hasAgent"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	WorkPhone    string `json:"workPhone,omitempty"`
}

func (r RealEstateAgent) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.When(r.HasAgent, validation.Required)),
		validation.Field(&r.LastName, validation.When(r.HasAgent, validation.Required)),
		validation.Field(&r.EmailAddress, validation.Match(emailRe)),
	)
}

type PersonalInfo struct {
	FirstName      string        `json:"firstName"`
	LastName       string        `json:"lastName"`
	DateOfBirth    string        `json:"dateOfBirth,omitempty"`
	MaritalStatus  MaritalStatus `json:"maritalStatus,omitempty"`
	IsSpouseOnLoan *bool         `json:"isSpouseOnLoan,omitempty"`
}

func (p PersonalInfo) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&p.DateOfBirth, validation.Match(dateRe)),
		validation.Field(&p.MaritalStatus, validation.In(maritalStatuses...)),
	)
}

type ContactInfo struct {
	FirstName                string      `json:"firstName"`
	LastName                 string      `json:"lastName"`
	Email                    string      `json:"email"`
	PhoneNumber              PhoneNumber `json:"phoneNumber"`
	HasPromotionalSMSConsent bool        `json:"hasPromotionalSmsConsent"`
}

func (c ContactInfo) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FirstName, validation.Required),
		validation.Field(&c.LastName, validation.Required),
		validation.Field(&c.Email, validation.Required, validation.Match(emailRe)),
		validation.Field(&c.PhoneNumber),
	)
}

type ServiceExpiration struct {
	Day   string `json:"day"`
	Month string `json:"month"`
	Year  string `json:"year"`
}

func (s ServiceExpiration) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Day, validation.Required, validation.Match(dayRe)),
		validation.Field(&s.Month, validation.Required, validation.Match(dayRe)),
		validation.Field(&s.Year, validation.Required, validation.Match(fullYearRe)),
	)
}

type MilitaryService struct {
	Status         MilitaryStatus     `json:"militaryStatus"`
	EligibleForVA  bool               `json:"eligibleForVA"`
	Branch         MilitaryBranch     `json:"militaryBranch,omitempty"`
	ServiceType    ServiceType        `json:"serviceType,omitempty"`
	ExpirationDate *ServiceExpiration `json:"expirationDate,omitempty"`
}

// Served reports whether service details apply.
func (m MilitaryService) Served() bool {
	return m.Status != "" && m.Status != MilitaryNone
}

func (m MilitaryService) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Status, validation.Required, validation.In(militaryStates...)),
		validation.Field(&m.Branch, validation.In(branches...), validation.When(m.Served(), validation.Required)),
		validation.Field(&m.ServiceType, validation.In(serviceTypes...)),
		validation.Field(&m.ExpirationDate),
	)
}

type Income struct {
	AnnualIncome     float64    `json:"annualIncome"`
	IncomeType       IncomeType `json:"incomeType"`
	EmployerName     string     `json:"employerName,omitempty"`
	JobTitle         string     `json:"jobTitle,omitempty"`
	YearsAtEmployer  int        `json:"yearsAtEmployer,omitempty"`
	MonthsAtEmployer int        `json:"monthsAtEmployer,omitempty"`
}

func (i Income) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.AnnualIncome, validation.Min(0.0)),
		validation.Field(&i.IncomeType, validation.In(incomeTypes...)),
		validation.Field(&i.YearsAtEmployer, validation.Min(0)),
		validation.Field(&i.MonthsAtEmployer, validation.Min(0), validation.Max(11)),
	)
}

type BankingAsset struct {
	BankAmount float64     `json:"bankAmount"`
	BankName   string      `json:"bankName"`
	TypeCode   AccountType `json:"typeCode"`
}

func (b BankingAsset) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.BankAmount, validation.Min(0.0)),
		validation.Field(&b.BankName, validation.Required),
		validation.Field(&b.TypeCode, validation.Required, validation.In(accountTypes...)),
	)
}

type GiftFund struct {
	GiftAmount float64 `json:"giftAmount"`
	Source     string  `json:"source"`
}

func (g GiftFund) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.GiftAmount, validation.Min(0.0)),
		validation.Field(&g.Source, validation.Required),
	)
}

type ProceedsFromHomeSale struct {
	ListingPrice   float64 `json:"listingPrice"`
	CurrentBalance float64 `json:"currentBalance"`
}

type PrimaryAssets struct {
	Assets               []BankingAsset        `json:"assets"`
	ProceedsFromHomeSale *ProceedsFromHomeSale `json:"proceedsFromHomeSale,omitempty"`
	GiftFunds            []GiftFund            `json:"giftFunds"`
}

type SpouseAssets struct {
	Assets []BankingAsset `json:"assets"`
}

type Funds struct {
	PrimaryAssets         PrimaryAssets `json:"primaryAssets"`
	SpouseAssets          *SpouseAssets `json:"spouseAssets,omitempty"`
	DownPaymentPercentage *float64      `json:"downPaymentPercentage,omitempty"`
}

func (f Funds) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.PrimaryAssets),
		validation.Field(&f.DownPaymentPercentage, validation.Min(0.0), validation.Max(100.0)),
	)
}

func (p PrimaryAssets) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Assets),
		validation.Field(&p.GiftFunds),
	)
}

type CreditPull struct {
	Birthdate string `json:"birthdate"`
	SSNLast4  string `json:"ssnLast4"`
	FullSSN   string `json:"fullSsn,omitempty"`
}

func (c CreditPull) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Birthdate, validation.Required, validation.Match(dateRe)),
		validation.Field(&c.SSNLast4, validation.Required, validation.Match(fourRe)),
		validation.Field(&c.FullSSN, validation.Match(ssnRe)),
	)
}

type Account struct {
	FirstName  string `json:"clientFirstName"`
	LastName   string `json:"clientLastName"`
	Username   string `json:"clientUsername"`
	Password   string `json:"password"`
	Redirect   string `json:"redirect,omitempty"`
	RmClientID string `json:"rmClientId,omitempty"`
}

func (a Account) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.FirstName, validation.Required),
		validation.Field(&a.LastName, validation.Required),
		validation.Field(&a.Username, validation.Required, validation.Match(emailRe)),
		validation.Field(&a.Password, validation.Required, validation.Length(8, 64)),
	)
}
