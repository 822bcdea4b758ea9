package models

type PropertyType string

const (
	PropertyTypeSingleFamily PropertyType = "single"
	PropertyTypeMultiFamily  PropertyType = "multi"
	PropertyTypeCondo        PropertyType = "condo"
	PropertyTypeTownhouse    PropertyType = "townhouse"
)

type OccupancyType string

const (
	OccupancyPrimary    OccupancyType = "primary"
	OccupancyInvestment OccupancyType = "investment"
	OccupancyVacation   OccupancyType = "vacation"
)

type MaritalStatus string

const (
	MaritalMarried MaritalStatus = "married"
	MaritalSingle  MaritalStatus = "single"
)

type MilitaryStatus string

const (
	MilitaryActiveDuty MilitaryStatus = "currentlyServing"
	MilitaryReserve    MilitaryStatus = "reserve"
	MilitaryPastDuty   MilitaryStatus = "dischgd"
	MilitaryNone       MilitaryStatus = "none"
)

type MilitaryBranch string

const (
	BranchArmy        MilitaryBranch = "army"
	BranchNavy        MilitaryBranch = "navy"
	BranchAirForce    MilitaryBranch = "airForce"
	BranchMarineCorps MilitaryBranch = "marineCorps"
	BranchSpaceForce  MilitaryBranch = "spaceForce"
	BranchCoastGuard  MilitaryBranch = "coastGuard"
	BranchNone        MilitaryBranch = "none"
)

type ServiceType string

const (
	ServiceRegular ServiceType = "regularMilitary"
	ServiceReserve ServiceType = "reserves"
	ServiceNone    ServiceType = "none"
)

type LivingSituationType string

const (
	LivingRenter    LivingSituationType = "Renter"
	LivingHomeowner LivingSituationType = "Homeowner"
)

type IncomeType string

const (
	IncomeEmployment     IncomeType = "Employment"
	IncomeSelfEmployed   IncomeType = "Self-Employed"
	IncomeUnemployment   IncomeType = "Unemployment"
	IncomeSocialSecurity IncomeType = "Social Security"
	IncomePension        IncomeType = "Pension"
	IncomeOther          IncomeType = "Other"
)

type AccountType string

const (
	AccountChecking   AccountType = "Checking"
	AccountSavings    AccountType = "Savings"
	AccountRetirement AccountType = "Retirement401k"
)

var (
	propertyTypes   = []interface{}{PropertyTypeSingleFamily, PropertyTypeMultiFamily, PropertyTypeCondo, PropertyTypeTownhouse}
	occupancyTypes  = []interface{}{OccupancyPrimary, OccupancyInvestment, OccupancyVacation}
	maritalStatuses = []interface{}{MaritalMarried, MaritalSingle}
	militaryStates  = []interface{}{MilitaryActiveDuty, MilitaryReserve, MilitaryPastDuty, MilitaryNone}
	branches        = []interface{}{BranchArmy, BranchNavy, BranchAirForce, BranchMarineCorps, BranchSpaceForce, BranchCoastGuard, BranchNone}
	serviceTypes    = []interface{}{ServiceRegular, ServiceReserve, ServiceNone}
	livingTypes     = []interface{}{LivingRenter, LivingHomeowner}
	incomeTypes     = []interface{}{IncomeEmployment, IncomeSelfEmployed, IncomeUnemployment, IncomeSocialSecurity, IncomePension, IncomeOther}
	accountTypes    = []interface{}{AccountChecking, AccountSavings, AccountRetirement}
)
