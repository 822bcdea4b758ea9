package google

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/rocket-approval/mortgage-agent/internal/logger"
)

// AllPersonFields requests every field the People API exposes for people/me.
var AllPersonFields = []string{
	"addresses", "ageRanges", "biographies", "birthdays", "calendarUrls", "clientData",
	"coverPhotos", "emailAddresses", "events", "externalIds", "genders", "imClients",
	"interests", "locales", "locations", "memberships", "metadata", "miscKeywords",
	"names", "nicknames", "occupations", "organizations", "phoneNumbers", "photos",
	"relations", "sipAddresses", "skills", "urls", "userDefined",
}

// Profile is the part of a Google person record useful to a loan application.
type Profile struct {
	ResourceName string `json:"resource_name,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Birthdate    string `json:"birthdate,omitempty"`
	Street       string `json:"street,omitempty"`
	Street2      string `json:"street2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
	Employer     string `json:"employer,omitempty"`
	JobTitle     string `json:"job_title,omitempty"`
}

// PeopleClient reads the signed-in user's profile.
type PeopleClient struct {
	opts []option.ClientOption
}

// NewPeopleClient accepts extra client options, mostly for pointing at a test server.
func NewPeopleClient(opts ...option.ClientOption) *PeopleClient {
	return &PeopleClient{opts: opts}
}

// Me fetches people/me with every person field.
func (c *PeopleClient) Me(ctx context.Context, ts oauth2.TokenSource) (*Profile, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts...)
	svc, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create people service: %w", err)
	}

	person, err := svc.People.Get("people/me").
		PersonFields(strings.Join(AllPersonFields, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get people/me: %w", err)
	}

	logger.Debug("Fetched Google profile %s", person.ResourceName)
	return ProfileFromPerson(person), nil
}

// ProfileFromPerson prefers primary entries and falls back to the first one.
func ProfileFromPerson(p *people.Person) *Profile {
	profile := &Profile{ResourceName: p.ResourceName}

	if name := primaryName(p.Names); name != nil {
		profile.FirstName = name.GivenName
		profile.LastName = name.FamilyName
	}

	for _, email := range p.EmailAddresses {
		if profile.Email == "" || isPrimary(email.Metadata) {
			profile.Email = email.Value
		}
	}

	for _, phone := range p.PhoneNumbers {
		value := phone.CanonicalForm
		if value == "" {
			value = phone.Value
		}
		if profile.Phone == "" || isPrimary(phone.Metadata) {
			profile.Phone = value
		}
	}

	for _, birthday := range p.Birthdays {
		if birthday.Date != nil && birthday.Date.Year > 0 {
			profile.Birthdate = fmt.Sprintf("%04d-%02d-%02d", birthday.Date.Year, birthday.Date.Month, birthday.Date.Day)
			break
		}
	}

	for _, addr := range p.Addresses {
		if profile.Street != "" && !isPrimary(addr.Metadata) {
			continue
		}
		profile.Street = addr.StreetAddress
		profile.Street2 = addr.ExtendedAddress
		profile.City = addr.City
		profile.State = strings.ToUpper(addr.Region)
		profile.ZipCode = addr.PostalCode
	}

	for _, org := range p.Organizations {
		if org.Current || profile.Employer == "" {
			profile.Employer = org.Name
			profile.JobTitle = org.Title
		}
	}

	return profile
}

func primaryName(names []*people.Name) *people.Name {
	var first *people.Name
	for _, n := range names {
		if isPrimary(n.Metadata) {
			return n
		}
		if first == nil {
			first = n
		}
	}
	return first
}

func isPrimary(m *people.FieldMetadata) bool {
	return m != nil && m.Primary
}
