// Package phone turns loosely formatted phone input into a dialable
// international form.
package phone

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Plan describes the numbering conventions of the home country: its
// calling code and the digit local mobile numbers start with after the
// trunk zero.
type Plan struct {
	CountryCode  string
	MobilePrefix string

	mobile   *regexp.Regexp
	landline *regexp.Regexp
	bare     *regexp.Regexp
	national *regexp.Regexp
}

var international = regexp.MustCompile(`^\+\d{9,15}$`)

// Israel is the default plan: +972, mobiles 05X-XXXXXXX.
var Israel = MustPlan("972", "5")

// NewPlan compiles the local patterns for a country.
func NewPlan(countryCode, mobilePrefix string) (*Plan, error) {
	if !isDigits(countryCode) || countryCode == "" {
		return nil, fmt.Errorf("invalid country code %q", countryCode)
	}
	if !isDigits(mobilePrefix) || mobilePrefix == "" {
		return nil, fmt.Errorf("invalid mobile prefix %q", mobilePrefix)
	}

	return &Plan{
		CountryCode:  countryCode,
		MobilePrefix: mobilePrefix,
		mobile:       regexp.MustCompile(`^0` + mobilePrefix + `\d{8}$`),
		landline:     regexp.MustCompile(`^0\d{8,9}$`),
		bare:         regexp.MustCompile(`^` + mobilePrefix + `\d{8}$`),
		national:     regexp.MustCompile(`^` + countryCode + `\d{8,9}$`),
	}, nil
}

// MustPlan is like NewPlan but panics on invalid input.
func MustPlan(countryCode, mobilePrefix string) *Plan {
	p, err := NewPlan(countryCode, mobilePrefix)
	if err != nil {
		panic(err)
	}
	return p
}

// Normalize cleans raw input and rewrites local forms to +<country code>.
// Input that matches no known form is returned cleaned but otherwise
// unchanged. Normalize is idempotent.
func (p *Plan) Normalize(raw string) string {
	s := clean(raw)

	switch {
	case strings.HasPrefix(s, "+"+p.CountryCode):
		return s
	case strings.HasPrefix(s, p.CountryCode):
		return "+" + s
	case strings.HasPrefix(s, "+"):
		return s
	case p.mobile.MatchString(s), p.landline.MatchString(s):
		return "+" + p.CountryCode + s[1:]
	case p.bare.MatchString(s):
		return "+" + p.CountryCode + s
	}
	return s
}

// LooksLikePhone reports whether the normalized input is plausibly dialable.
func (p *Plan) LooksLikePhone(raw string) bool {
	s := p.Normalize(raw)
	return international.MatchString(s) || p.national.MatchString(s)
}

// Normalize normalizes raw with the Israel plan.
func Normalize(raw string) string {
	return Israel.Normalize(raw)
}

// LooksLikePhone checks raw with the Israel plan.
func LooksLikePhone(raw string) bool {
	return Israel.LooksLikePhone(raw)
}

func clean(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '-', '.', '(', ')', '/':
			return -1
		}
		return r
	}, raw)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
