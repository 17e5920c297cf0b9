package fund

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

const (
	MaxMessageChars   = 280
	MaxDonorNameChars = 50
	MaxOfficialLinks  = 5
	MaxLinkLength     = 500
	MaxDocumentSize   = 5 << 20
)

var MaxGoalAmount = decimal.NewFromInt(1000000)

var maxLengths = map[string]int{
	"organizationName":    200,
	"representativeName":  100,
	"representativeEmail": 254,
	"representativePhone": 20,
	"representativeRole":  100,
	"description":         5000,
	"walletAddress":       44,
	"verificationDetails": 3000,
	"locationAddress":     500,
	"locationCoords":      50,
	"province":            100,
	"district":            100,
	"municipality":        100,
}

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe   = regexp.MustCompile(`^\+?[\d\s\-()]{7,20}$`)
	addressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	coordsRe  = regexp.MustCompile(`^-?\d+\.?\d*\s*,\s*-?\d+\.?\d*$`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// ValidationError collects the per field errors of a request.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + v.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = msg
}

func (v *ValidationError) errOrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

// Submission is a campaign as sent by the submission form.
type Submission struct {
	OrganizationName    string          `json:"organizationName"`
	RepresentativeName  string          `json:"representativeName"`
	RepresentativeEmail string          `json:"representativeEmail"`
	RepresentativePhone string          `json:"representativePhone"`
	RepresentativeRole  string          `json:"representativeRole"`
	Description         string          `json:"description"`
	WalletAddress       string          `json:"walletAddress"`
	OfficialLinks       []string        `json:"officialLinks"`
	VerificationDetails string          `json:"verificationDetails"`
	EventDate           string          `json:"eventDate"`
	LocationAddress     string          `json:"locationAddress"`
	LocationCoords      string          `json:"locationCoords"`
	Province            string          `json:"province"`
	District            string          `json:"district"`
	Municipality        string          `json:"municipality"`
	Category            string          `json:"category"`
	GoalAmount          decimal.Decimal `json:"goalAmount"`
}

func sanitize(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

func tooLong(value, field string) bool {
	max, ok := maxLengths[field]
	return ok && utf8.RuneCountInString(value) > max
}

// ValidAddress checks that s is a base58 encoded 32 byte public key.
func ValidAddress(s string) bool {
	if !addressRe.MatchString(s) {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

// ValidSignature checks that s is a base58 encoded 64 byte signature.
func ValidSignature(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 64
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func validCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Normalize sanitizes the submission and checks every field, returning
// the campaign it describes. All field errors are reported at once.
func (s Submission) Normalize(now time.Time) (*Campaign, error) {
	c := &Campaign{
		OrganizationName:    sanitize(s.OrganizationName),
		RepresentativeName:  sanitize(s.RepresentativeName),
		RepresentativeEmail: sanitize(s.RepresentativeEmail),
		RepresentativePhone: sanitize(s.RepresentativePhone),
		RepresentativeRole:  sanitize(s.RepresentativeRole),
		Description:         strings.TrimSpace(s.Description),
		WalletAddress:       sanitize(s.WalletAddress),
		VerificationDetails: strings.TrimSpace(s.VerificationDetails),
		LocationAddress:     sanitize(s.LocationAddress),
		LocationCoords:      sanitize(s.LocationCoords),
		Province:            sanitize(s.Province),
		District:            sanitize(s.District),
		Municipality:        sanitize(s.Municipality),
		Category:            sanitize(s.Category),
		GoalAmount:          s.GoalAmount,
		OfficialLinks:       []string{},
	}
	for _, l := range s.OfficialLinks {
		if l = strings.TrimSpace(l); l != "" {
			c.OfficialLinks = append(c.OfficialLinks, l)
		}
	}

	var v ValidationError
	switch n := utf8.RuneCountInString(c.OrganizationName); {
	case n == 0:
		v.add("organizationName", "Organization name is required")
	case n < 3:
		v.add("organizationName", "Organization name must be at least 3 characters")
	case tooLong(c.OrganizationName, "organizationName"):
		v.add("organizationName", "Organization name is too long")
	}

	if c.RepresentativeName == "" {
		v.add("representativeName", "Representative name is required")
	} else if tooLong(c.RepresentativeName, "representativeName") {
		v.add("representativeName", "Name is too long")
	}

	if c.RepresentativeEmail != "" && (!emailRe.MatchString(c.RepresentativeEmail) || tooLong(c.RepresentativeEmail, "representativeEmail")) {
		v.add("representativeEmail", "Invalid email address format")
	}
	if c.RepresentativePhone != "" && !phoneRe.MatchString(c.RepresentativePhone) {
		v.add("representativePhone", "Invalid phone number format")
	}
	if tooLong(c.RepresentativeRole, "representativeRole") {
		v.add("representativeRole", "Role is too long")
	}

	switch n := utf8.RuneCountInString(c.Description); {
	case n == 0:
		v.add("description", "Description is required")
	case n < 50:
		v.add("description", "Description must be at least 50 characters")
	case tooLong(c.Description, "description"):
		v.add("description", "Description is too long")
	}

	if c.WalletAddress == "" {
		v.add("walletAddress", "Wallet address is required")
	} else if !ValidAddress(c.WalletAddress) {
		v.add("walletAddress", "Invalid Solana wallet address format")
	}

	if c.VerificationDetails == "" {
		v.add("verificationDetails", "Verification details are required")
	} else if tooLong(c.VerificationDetails, "verificationDetails") {
		v.add("verificationDetails", "Verification details are too long")
	}

	eventDate := sanitize(s.EventDate)
	if eventDate == "" {
		v.add("eventDate", "Event date is required")
	} else if t, err := ParseDate(eventDate); err != nil {
		v.add("eventDate", "Invalid date format")
	} else if t.Before(now) {
		v.add("eventDate", "Event date must be in the future")
	} else {
		c.EventDate = t
	}

	if c.LocationAddress == "" {
		v.add("locationAddress", "Location address is required")
	} else if tooLong(c.LocationAddress, "locationAddress") {
		v.add("locationAddress", "Location address is too long")
	}

	if c.LocationCoords == "" {
		v.add("locationCoords", "Location coordinates are required")
	} else if !coordsRe.MatchString(c.LocationCoords) || tooLong(c.LocationCoords, "locationCoords") {
		v.add("locationCoords", "Invalid coordinate format (expected: lat,lng)")
	}

	for _, f := range []struct{ name, value string }{
		{"province", c.Province},
		{"district", c.District},
		{"municipality", c.Municipality},
	} {
		if tooLong(f.value, f.name) {
			v.add(f.name, "Value is too long")
		}
	}

	if c.Category == "" {
		c.Category = DefaultCategory
	} else if !validCategory(c.Category) {
		v.add("category", "Invalid category")
	}

	if c.GoalAmount.IsNegative() {
		v.add("goalAmount", "Goal amount cannot be negative")
	} else if c.GoalAmount.GreaterThan(MaxGoalAmount) {
		v.add("goalAmount", "Goal amount exceeds maximum limit")
	}

	if len(c.OfficialLinks) > MaxOfficialLinks {
		v.add("officialLinks", "Maximum 5 links allowed")
	} else {
		for _, l := range c.OfficialLinks {
			if len(l) > MaxLinkLength {
				v.add("officialLinks", "Link URL is too long")
				break
			}
		}
	}

	if err := v.errOrNil(); err != nil {
		return nil, err
	}
	return c, nil
}

// Receipt is the donor side record of a confirmed donation.
type Receipt struct {
	CampaignID  string `json:"campaignId"`
	DonorWallet string `json:"donorWallet"`
	DonorName   string `json:"donorName,omitempty"`
	Message     string `json:"donorMessage,omitempty"`
	Lamports    uint64 `json:"amountLamports"`
	TxSignature string `json:"txSignature"`
	Anonymous   bool   `json:"isAnonymous"`
}

// Validate checks the receipt fields.
func (r *Receipt) Validate() error {
	var v ValidationError
	if strings.TrimSpace(r.CampaignID) == "" {
		v.add("campaignId", "Campaign id is required")
	}
	if r.DonorWallet == "" {
		v.add("donorWallet", "Donor wallet is required")
	} else if !ValidAddress(r.DonorWallet) {
		v.add("donorWallet", "Invalid Solana wallet address format")
	}
	if r.Lamports == 0 {
		v.add("amountLamports", "Amount must be greater than zero")
	}
	if r.TxSignature == "" {
		v.add("txSignature", "Transaction signature is required")
	} else if !ValidSignature(r.TxSignature) {
		v.add("txSignature", "Invalid transaction signature format")
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageChars {
		v.add("donorMessage", "Message exceeds 280 characters")
	}
	if utf8.RuneCountInString(r.DonorName) > MaxDonorNameChars {
		v.add("donorName", "Donor name exceeds 50 characters")
	}
	return v.errOrNil()
}
