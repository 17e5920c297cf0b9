package fund

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// VerificationStatus is the review state of a submitted campaign.
type VerificationStatus string

const (
	StatusPending   VerificationStatus = "pending"
	StatusScheduled VerificationStatus = "scheduled"
	StatusVerified  VerificationStatus = "verified"
	StatusRejected  VerificationStatus = "rejected"
)

// Valid checks if the status is one of the known states.
func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// ApprovedDuration is how long a verified campaign accepts donations.
const ApprovedDuration = 180 * 24 * time.Hour

var Categories = []string{
	"Humanitarian", "Education", "Healthcare", "Environment",
	"Culture", "Infrastructure", "Animal Welfare", "Technology",
	"Community", "Emergency",
}

const DefaultCategory = "Humanitarian"

// Campaign is a submitted campaign going through verification.
type Campaign struct {
	ID                     string             `json:"id"`
	OrganizationName       string             `json:"organizationName"`
	RepresentativeName     string             `json:"representativeName"`
	RepresentativeEmail    string             `json:"representativeEmail,omitempty"`
	RepresentativePhone    string             `json:"representativePhone,omitempty"`
	RepresentativeRole     string             `json:"representativeRole,omitempty"`
	RepresentativePhotoURL string             `json:"representativePhotoUrl,omitempty"`
	Description            string             `json:"description"`
	WalletAddress          string             `json:"walletAddress"`
	OfficialLinks          []string           `json:"officialLinks"`
	VerificationDetails    string             `json:"verificationDetails"`
	EventDate              time.Time          `json:"eventDate"`
	LocationAddress        string             `json:"locationAddress"`
	LocationCoords         string             `json:"locationCoords"`
	Province               string             `json:"province,omitempty"`
	District               string             `json:"district,omitempty"`
	Municipality           string             `json:"municipality,omitempty"`
	Category               string             `json:"category"`
	GoalAmount             decimal.Decimal    `json:"goalAmount"`
	NGORegistrationURL     string             `json:"ngoRegistrationUrl,omitempty"`
	TaxExemptionURL        string             `json:"taxExemptionUrl,omitempty"`
	RepresentativeIDURL    string             `json:"representativeIdUrl,omitempty"`
	Status                 VerificationStatus `json:"verificationStatus"`
	Notes                  string             `json:"verificationNotes,omitempty"`
	VerificationDate       *time.Time         `json:"verificationDate,omitempty"`
	ScheduledDate          *time.Time         `json:"scheduledDate,omitempty"`
	CreatedAt              time.Time          `json:"createdAt"`
	UpdatedAt              time.Time          `json:"updatedAt"`
}

// ApprovedCampaign is the public, denormalized copy of a verified
// campaign. There is at most one per pending campaign.
type ApprovedCampaign struct {
	PendingID              string          `json:"campaignPendingId"`
	OrganizationName       string          `json:"organizationName"`
	RepresentativeName     string          `json:"representativeName"`
	RepresentativeEmail    string          `json:"representativeEmail,omitempty"`
	RepresentativePhone    string          `json:"representativePhone,omitempty"`
	RepresentativeRole     string          `json:"representativeRole,omitempty"`
	RepresentativePhotoURL string          `json:"representativePhotoUrl,omitempty"`
	Description            string          `json:"description"`
	WalletAddress          string          `json:"walletAddress"`
	OfficialLinks          []string        `json:"officialLinks"`
	Category               string          `json:"category"`
	GoalAmount             decimal.Decimal `json:"goalAmount"`
	RaisedLamports         uint64          `json:"raisedLamports"`
	LocationAddress        string          `json:"locationAddress"`
	LocationCoords         string          `json:"locationCoords"`
	Province               string          `json:"province,omitempty"`
	District               string          `json:"district,omitempty"`
	Municipality           string          `json:"municipality,omitempty"`
	EndDate                time.Time       `json:"endDate"`
	Active                 bool            `json:"isActive"`
	VerifiedAt             time.Time       `json:"verifiedAt"`
}

// Open reports whether the campaign still accepts donations at t.
func (a *ApprovedCampaign) Open(t time.Time) bool {
	return a.Active && t.Before(a.EndDate)
}

func approve(c *Campaign, now time.Time) *ApprovedCampaign {
	links := make([]string, len(c.OfficialLinks))
	copy(links, c.OfficialLinks)
	return &ApprovedCampaign{
		PendingID:              c.ID,
		OrganizationName:       c.OrganizationName,
		RepresentativeName:     c.RepresentativeName,
		RepresentativeEmail:    c.RepresentativeEmail,
		RepresentativePhone:    c.RepresentativePhone,
		RepresentativeRole:     c.RepresentativeRole,
		RepresentativePhotoURL: c.RepresentativePhotoURL,
		Description:            c.Description,
		WalletAddress:          c.WalletAddress,
		OfficialLinks:          links,
		Category:               c.Category,
		GoalAmount:             c.GoalAmount,
		LocationAddress:        c.LocationAddress,
		LocationCoords:         c.LocationCoords,
		Province:               c.Province,
		District:               c.District,
		Municipality:           c.Municipality,
		EndDate:                now.Add(ApprovedDuration),
		Active:                 true,
		VerifiedAt:             now,
	}
}

// Donation is the off-chain receipt of a confirmed transfer.
type Donation struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaignId"`
	DonorWallet  string    `json:"donorWallet"`
	DonorName    string    `json:"donorName,omitempty"`
	DonorMessage string    `json:"donorMessage,omitempty"`
	Lamports     uint64    `json:"amountLamports"`
	TxSignature  string    `json:"txSignature"`
	Anonymous    bool      `json:"isAnonymous"`
	CreatedAt    time.Time `json:"createdAt"`
}

type MeetingType string

const (
	MeetingInPerson  MeetingType = "in_person"
	MeetingVideoCall MeetingType = "video_call"
	MeetingPhoneCall MeetingType = "phone_call"
)

func (m MeetingType) Valid() bool {
	return m == MeetingInPerson || m == MeetingVideoCall || m == MeetingPhoneCall
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// Appointment is a verification meeting with a campaign representative.
type Appointment struct {
	ID            string            `json:"id"`
	CampaignID    string            `json:"campaignId"`
	ScheduledDate time.Time         `json:"scheduledDate"`
	ScheduledBy   string            `json:"scheduledBy"`
	MeetingType   MeetingType       `json:"meetingType"`
	MeetingLink   string            `json:"meetingLink,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Status        AppointmentStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Detail is one key/value pair of an audit entry.
type Detail struct {
	Key   string
	Value string
}

// Details keeps insertion order and encodes as a JSON object.
type Details []Detail

func (d Details) Get(key string) (string, bool) {
	for _, kv := range d {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AdminAction is an entry of the append-only admin audit log.
type AdminAction struct {
	Seq         uint64    `json:"seq"`
	ID          string    `json:"id"`
	AdminWallet string    `json:"adminWallet"`
	Action      string    `json:"action"`
	TargetID    string    `json:"targetId"`
	TargetType  string    `json:"targetType"`
	Details     Details   `json:"details"`
	CreatedAt   time.Time `json:"createdAt"`
}

type DocumentType string

const (
	DocNGORegistration     DocumentType = "ngo_registration"
	DocTaxExemption        DocumentType = "tax_exemption"
	DocRepresentativeID    DocumentType = "representative_id"
	DocRepresentativePhoto DocumentType = "representative_photo"
)

func (d DocumentType) Valid() bool {
	switch d {
	case DocNGORegistration, DocTaxExemption, DocRepresentativeID, DocRepresentativePhoto:
		return true
	}
	return false
}

// Bucket returns the blob bucket the document is stored in.
func (d DocumentType) Bucket() string {
	if d == DocRepresentativePhoto {
		return "photos"
	}
	return "documents"
}

// Blob is an uploaded file.
type Blob struct {
	Bucket      string
	Path        string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}
