package fund

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "8HACvxLFboKua6ARScPZsqHVCMAQ7MniL8AhNDxomV9Y"

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func validSubmission() Submission {
	return Submission{
		OrganizationName:    "  Sahayog   Relief Trust ",
		RepresentativeName:  "Maya Gurung",
		RepresentativeEmail: "maya@example.org",
		RepresentativePhone: "+977 9800000000",
		Description:         strings.Repeat("Flood relief for families in Saptari. ", 3),
		WalletAddress:       testWallet,
		OfficialLinks:       []string{"https://example.org", "  "},
		VerificationDetails: "Registered with the district administration office.",
		EventDate:           "2026-06-01",
		LocationAddress:     "Rajbiraj, Saptari",
		LocationCoords:      "26.54, 86.75",
		GoalAmount:          decimal.NewFromInt(250),
	}
}

func TestNormalize(t *testing.T) {
	c, err := validSubmission().Normalize(testNow)
	require.NoError(t, err)
	assert.Equal(t, "Sahayog Relief Trust", c.OrganizationName)
	assert.Equal(t, DefaultCategory, c.Category)
	assert.Equal(t, []string{"https://example.org"}, c.OfficialLinks)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), c.EventDate)
}

func TestNormalizeReportsEveryField(t *testing.T) {
	s := Submission{
		OrganizationName: "ab",
		Description:      "too short",
		WalletAddress:    "0xabc",
		EventDate:        "2020-01-01",
		LocationCoords:   "north",
		Category:         "Sports",
		GoalAmount:       decimal.NewFromInt(-1),
		OfficialLinks:    []string{"a", "b", "c", "d", "e", "f"},
	}

	_, err := s.Normalize(testNow)
	v, ok := err.(*ValidationError)
	require.True(t, ok)

	for _, f := range []string{
		"organizationName",
		"representativeName",
		"description",
		"walletAddress",
		"verificationDetails",
		"eventDate",
		"locationAddress",
		"locationCoords",
		"category",
		"goalAmount",
		"officialLinks",
	} {
		assert.Contains(t, v.Fields, f)
	}
	assert.Equal(t, "Event date must be in the future", v.Fields["eventDate"])
	assert.Equal(t, "Organization name must be at least 3 characters", v.Fields["organizationName"])
}

func TestNormalizeOptionalFormats(t *testing.T) {
	s := validSubmission()
	s.RepresentativeEmail = "not-an-email"
	s.RepresentativePhone = "call me"
	s.GoalAmount = decimal.NewFromInt(1000001)

	_, err := s.Normalize(testNow)
	v, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Len(t, v.Fields, 3)
	assert.Equal(t, "Goal amount exceeds maximum limit", v.Fields["goalAmount"])

	s = validSubmission()
	s.RepresentativeEmail = ""
	s.RepresentativePhone = ""
	_, err = s.Normalize(testNow)
	assert.NoError(t, err)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(testWallet))
	assert.True(t, ValidAddress("11111111111111111111111111111111"))
	assert.False(t, ValidAddress("0OIl1111111111111111111111111111"))
	assert.False(t, ValidAddress("abc"))
}

func TestReceiptValidate(t *testing.T) {
	r := Receipt{
		CampaignID:  "c1",
		DonorWallet: testWallet,
		Lamports:    1,
		TxSignature: strings.Repeat("1", 64),
	}
	assert.NoError(t, r.Validate())

	r = Receipt{
		DonorWallet: "bad",
		TxSignature: "bad",
		Message:     strings.Repeat("x", MaxMessageChars+1),
		DonorName:   strings.Repeat("x", MaxDonorNameChars+1),
	}
	err := r.Validate()
	v, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Len(t, v.Fields, 6)
}

func TestApprove(t *testing.T) {
	c, err := validSubmission().Normalize(testNow)
	require.NoError(t, err)
	c.ID = "c1"

	a := approve(c, testNow)
	assert.Equal(t, "c1", a.PendingID)
	assert.Equal(t, testNow.Add(ApprovedDuration), a.EndDate)
	assert.True(t, a.Open(testNow))
	assert.False(t, a.Open(testNow.Add(ApprovedDuration+time.Second)))
}
