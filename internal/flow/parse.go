package flow

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rocket-approval/mortgage-agent/internal/models"
)

// Parser turns a raw reply into the canonical answer stored for a question.
type Parser func(string) (string, error)

var (
	locationRe  = regexp.MustCompile(`^\s*(.+?)\s*,\s*([A-Za-z]{2})\s*,?\s*(\d{5}(?:-\d{4})?)\s*$`)
	canonicalRe = regexp.MustCompile(`^(.+), ([A-Z]{2}) (\d{5}(?:-\d{4})?)$`)
	emailRe     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	ssn4Re      = regexp.MustCompile(`^\d{4}$`)
)

var errEmpty = errors.New("please enter a value")

// now is swapped in tests that depend on the current date.
var now = time.Now

var (
	yesWords = map[string]bool{"y": true, "yes": true, "yeah": true, "yep": true, "yup": true, "sure": true,
		"ok": true, "okay": true, "correct": true, "right": true, "true": true, "proceed": true}
	noWords = map[string]bool{"n": true, "no": true, "nope": true, "nah": true, "false": true, "wrong": true}
)

func ParseYesNo(s string) (string, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return "", errors.New("please answer yes or no")
	}
	word := strings.TrimFunc(fields[0], unicode.IsPunct)
	switch {
	case yesWords[word]:
		return "yes", nil
	case noWords[word]:
		return "no", nil
	}
	return "", errors.New("please answer yes or no")
}

func ParseText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errEmpty
	}
	return s, nil
}

// ParseMoney accepts "$450,000", "450k" or "1.2m".
func ParseMoney(s string) (string, error) {
	clean := strings.ToLower(strings.TrimSpace(s))
	clean = strings.NewReplacer("$", "", ",", "", " ", "").Replace(clean)

	multiplier := 1.0
	switch {
	case strings.HasSuffix(clean, "k"):
		multiplier, clean = 1_000, strings.TrimSuffix(clean, "k")
	case strings.HasSuffix(clean, "m"):
		multiplier, clean = 1_000_000, strings.TrimSuffix(clean, "m")
	}

	v, err := strconv.ParseFloat(clean, 64)
	v *= multiplier
	if err != nil || !finite(v) {
		return "", fmt.Errorf("%q is not an amount", s)
	}
	if v < 0 {
		return "", errors.New("amount can't be negative")
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

func ParsePercent(s string) (string, error) {
	clean := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || !finite(v) {
		return "", fmt.Errorf("%q is not a percentage", s)
	}
	if v < 0 || v > 100 {
		return "", errors.New("percentage must be between 0 and 100")
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// finite rejects the NaN and Inf spellings ParseFloat accepts.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ParseCount(s string) (string, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return "", fmt.Errorf("%q is not a whole number", s)
	}
	return strconv.Itoa(v), nil
}

// ParseLocation normalises "Detroit, mi 48226" to "Detroit, MI 48226".
func ParseLocation(s string) (string, error) {
	m := locationRe.FindStringSubmatch(s)
	if m == nil {
		return "", errors.New("use the form City, ST 12345")
	}
	return fmt.Sprintf("%s, %s %s", m[1], strings.ToUpper(m[2]), m[3]), nil
}

func splitLocation(v string) (city, state, zip string) {
	m := canonicalRe.FindStringSubmatch(v)
	if m == nil {
		return "", "", ""
	}
	return m[1], m[2], m[3]
}

// ParseName wants at least a first and a last name.
func ParseName(s string) (string, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return "", errors.New("please give a first and last name")
	}
	return strings.Join(fields, " "), nil
}

func splitName(v string) (first, last string) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func ParsePhone(s string) (string, error) {
	phone, err := models.ParsePhoneNumber(s)
	if err != nil {
		return "", err
	}
	return phone.String(), nil
}

// ParseDate accepts YYYY-MM-DD or MM/DD/YYYY and returns YYYY-MM-DD.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%q is not a date (use YYYY-MM-DD or MM/DD/YYYY)", s)
}

// ParseBirthdate additionally requires the borrower to be at least 18.
func ParseBirthdate(s string) (string, error) {
	v, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	born, _ := time.Parse("2006-01-02", v)
	if born.AddDate(18, 0, 0).After(now()) {
		return "", errors.New("borrowers must be at least 18 years old")
	}
	return v, nil
}

func ParseEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !emailRe.MatchString(s) {
		return "", fmt.Errorf("%q is not an e-mail address", s)
	}
	return strings.ToLower(s), nil
}

func ParseSSN4(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !ssn4Re.MatchString(s) {
		return "", errors.New("enter exactly the last 4 digits")
	}
	return s, nil
}

func ParsePassword(s string) (string, error) {
	if len(s) < 8 || len(s) > 64 {
		return "", errors.New("password must be 8 to 64 characters")
	}
	return s, nil
}

// Option is one entry of a multiple choice question.
type Option struct {
	Value   string
	Label   string
	Aliases []string
}

type Choices []Option

// Menu renders the options as a numbered list.
func (c Choices) Menu() string {
	var b strings.Builder
	for i, o := range c {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, o.Label)
	}
	return b.String()
}

// Parse accepts the option number, its value, its label or an alias.
func (c Choices) Parse(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(c) {
		return c[n-1].Value, nil
	}
	for _, o := range c {
		if s == strings.ToLower(o.Value) || s == strings.ToLower(o.Label) {
			return o.Value, nil
		}
		for _, alias := range o.Aliases {
			if s == alias {
				return o.Value, nil
			}
		}
	}
	return "", fmt.Errorf("please pick one of 1-%d", len(c))
}

// Label returns the display label for a stored value.
func (c Choices) Label(value string) string {
	for _, o := range c {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}
