package store

import (
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/shopspring/decimal"
)

// The records are the rlp encoded forms of the fund types. rlp has no
// signed integers or time values, timestamps are unix milliseconds
// with zero meaning unset.

type campaignRecord struct {
	ID                     string
	OrganizationName       string
	RepresentativeName     string
	RepresentativeEmail    string
	RepresentativePhone    string
	RepresentativeRole     string
	RepresentativePhotoURL string
	Description            string
	WalletAddress          string
	OfficialLinks          []string
	VerificationDetails    string
	EventDate              uint64
	LocationAddress        string
	LocationCoords         string
	Province               string
	District               string
	Municipality           string
	Category               string
	GoalAmount             string
	NGORegistrationURL     string
	TaxExemptionURL        string
	RepresentativeIDURL    string
	Status                 string
	Notes                  string
	VerificationDate       uint64
	ScheduledDate          uint64
	CreatedAt              uint64
	UpdatedAt              uint64
}

type approvedRecord struct {
	PendingID              string
	OrganizationName       string
	RepresentativeName     string
	RepresentativeEmail    string
	RepresentativePhone    string
	RepresentativeRole     string
	RepresentativePhotoURL string
	Description            string
	WalletAddress          string
	OfficialLinks          []string
	Category               string
	GoalAmount             string
	RaisedLamports         uint64
	LocationAddress        string
	LocationCoords         string
	Province               string
	District               string
	Municipality           string
	EndDate                uint64
	Active                 bool
	VerifiedAt             uint64
}

type donationRecord struct {
	ID           string
	CampaignID   string
	DonorWallet  string
	DonorName    string
	DonorMessage string
	Lamports     uint64
	TxSignature  string
	Anonymous    bool
	CreatedAt    uint64
}

type appointmentRecord struct {
	ID            string
	CampaignID    string
	ScheduledDate uint64
	ScheduledBy   string
	MeetingType   string
	MeetingLink   string
	Notes         string
	Status        string
	CreatedAt     uint64
}

type detailRecord struct {
	Key   string
	Value string
}

type actionRecord struct {
	Seq         uint64
	ID          string
	AdminWallet string
	Action      string
	TargetID    string
	TargetType  string
	Details     []detailRecord
	CreatedAt   uint64
}

type blobRecord struct {
	ContentType string
	Data        []byte
	CreatedAt   uint64
}

func millis(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixMilli())
}

func optMillis(t *time.Time) uint64 {
	if t == nil {
		return 0
	}
	return millis(*t)
}

func fromMillis(ms uint64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}

func optFromMillis(ms uint64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := fromMillis(ms)
	return &t
}

func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func links(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func toCampaignRecord(c *fund.Campaign) *campaignRecord {
	return &campaignRecord{
		ID:                     c.ID,
		OrganizationName:       c.OrganizationName,
		RepresentativeName:     c.RepresentativeName,
		RepresentativeEmail:    c.RepresentativeEmail,
		RepresentativePhone:    c.RepresentativePhone,
		RepresentativeRole:     c.RepresentativeRole,
		RepresentativePhotoURL: c.RepresentativePhotoURL,
		Description:            c.Description,
		WalletAddress:          c.WalletAddress,
		OfficialLinks:          links(c.OfficialLinks),
		VerificationDetails:    c.VerificationDetails,
		EventDate:              millis(c.EventDate),
		LocationAddress:        c.LocationAddress,
		LocationCoords:         c.LocationCoords,
		Province:               c.Province,
		District:               c.District,
		Municipality:           c.Municipality,
		Category:               c.Category,
		GoalAmount:             c.GoalAmount.String(),
		NGORegistrationURL:     c.NGORegistrationURL,
		TaxExemptionURL:        c.TaxExemptionURL,
		RepresentativeIDURL:    c.RepresentativeIDURL,
		Status:                 string(c.Status),
		Notes:                  c.Notes,
		VerificationDate:       optMillis(c.VerificationDate),
		ScheduledDate:          optMillis(c.ScheduledDate),
		CreatedAt:              millis(c.CreatedAt),
		UpdatedAt:              millis(c.UpdatedAt),
	}
}

func (r *campaignRecord) campaign() *fund.Campaign {
	return &fund.Campaign{
		ID:                     r.ID,
		OrganizationName:       r.OrganizationName,
		RepresentativeName:     r.RepresentativeName,
		RepresentativeEmail:    r.RepresentativeEmail,
		RepresentativePhone:    r.RepresentativePhone,
		RepresentativeRole:     r.RepresentativeRole,
		RepresentativePhotoURL: r.RepresentativePhotoURL,
		Description:            r.Description,
		WalletAddress:          r.WalletAddress,
		OfficialLinks:          links(r.OfficialLinks),
		VerificationDetails:    r.VerificationDetails,
		EventDate:              fromMillis(r.EventDate),
		LocationAddress:        r.LocationAddress,
		LocationCoords:         r.LocationCoords,
		Province:               r.Province,
		District:               r.District,
		Municipality:           r.Municipality,
		Category:               r.Category,
		GoalAmount:             parseAmount(r.GoalAmount),
		NGORegistrationURL:     r.NGORegistrationURL,
		TaxExemptionURL:        r.TaxExemptionURL,
		RepresentativeIDURL:    r.RepresentativeIDURL,
		Status:                 fund.VerificationStatus(r.Status),
		Notes:                  r.Notes,
		VerificationDate:       optFromMillis(r.VerificationDate),
		ScheduledDate:          optFromMillis(r.ScheduledDate),
		CreatedAt:              fromMillis(r.CreatedAt),
		UpdatedAt:              fromMillis(r.UpdatedAt),
	}
}

func toApprovedRecord(a *fund.ApprovedCampaign) *approvedRecord {
	return &approvedRecord{
		PendingID:              a.PendingID,
		OrganizationName:       a.OrganizationName,
		RepresentativeName:     a.RepresentativeName,
		RepresentativeEmail:    a.RepresentativeEmail,
		RepresentativePhone:    a.RepresentativePhone,
		RepresentativeRole:     a.RepresentativeRole,
		RepresentativePhotoURL: a.RepresentativePhotoURL,
		Description:            a.Description,
		WalletAddress:          a.WalletAddress,
		OfficialLinks:          links(a.OfficialLinks),
		Category:               a.Category,
		GoalAmount:             a.GoalAmount.String(),
		RaisedLamports:         a.RaisedLamports,
		LocationAddress:        a.LocationAddress,
		LocationCoords:         a.LocationCoords,
		Province:               a.Province,
		District:               a.District,
		Municipality:           a.Municipality,
		EndDate:                millis(a.EndDate),
		Active:                 a.Active,
		VerifiedAt:             millis(a.VerifiedAt),
	}
}

func (r *approvedRecord) approved() *fund.ApprovedCampaign {
	return &fund.ApprovedCampaign{
		PendingID:              r.PendingID,
		OrganizationName:       r.OrganizationName,
		RepresentativeName:     r.RepresentativeName,
		RepresentativeEmail:    r.RepresentativeEmail,
		RepresentativePhone:    r.RepresentativePhone,
		RepresentativeRole:     r.RepresentativeRole,
		RepresentativePhotoURL: r.RepresentativePhotoURL,
		Description:            r.Description,
		WalletAddress:          r.WalletAddress,
		OfficialLinks:          links(r.OfficialLinks),
		Category:               r.Category,
		GoalAmount:             parseAmount(r.GoalAmount),
		RaisedLamports:         r.RaisedLamports,
		LocationAddress:        r.LocationAddress,
		LocationCoords:         r.LocationCoords,
		Province:               r.Province,
		District:               r.District,
		Municipality:           r.Municipality,
		EndDate:                fromMillis(r.EndDate),
		Active:                 r.Active,
		VerifiedAt:             fromMillis(r.VerifiedAt),
	}
}

func toDonationRecord(d *fund.Donation) *donationRecord {
	return &donationRecord{
		ID:           d.ID,
		CampaignID:   d.CampaignID,
		DonorWallet:  d.DonorWallet,
		DonorName:    d.DonorName,
		DonorMessage: d.DonorMessage,
		Lamports:     d.Lamports,
		TxSignature:  d.TxSignature,
		Anonymous:    d.Anonymous,
		CreatedAt:    millis(d.CreatedAt),
	}
}

func (r *donationRecord) donation() *fund.Donation {
	return &fund.Donation{
		ID:           r.ID,
		CampaignID:   r.CampaignID,
		DonorWallet:  r.DonorWallet,
		DonorName:    r.DonorName,
		DonorMessage: r.DonorMessage,
		Lamports:     r.Lamports,
		TxSignature:  r.TxSignature,
		Anonymous:    r.Anonymous,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

func toAppointmentRecord(a *fund.Appointment) *appointmentRecord {
	return &appointmentRecord{
		ID:            a.ID,
		CampaignID:    a.CampaignID,
		ScheduledDate: millis(a.ScheduledDate),
		ScheduledBy:   a.ScheduledBy,
		MeetingType:   string(a.MeetingType),
		MeetingLink:   a.MeetingLink,
		Notes:         a.Notes,
		Status:        string(a.Status),
		CreatedAt:     millis(a.CreatedAt),
	}
}

func (r *appointmentRecord) appointment() *fund.Appointment {
	return &fund.Appointment{
		ID:            r.ID,
		CampaignID:    r.CampaignID,
		ScheduledDate: fromMillis(r.ScheduledDate),
		ScheduledBy:   r.ScheduledBy,
		MeetingType:   fund.MeetingType(r.MeetingType),
		MeetingLink:   r.MeetingLink,
		Notes:         r.Notes,
		Status:        fund.AppointmentStatus(r.Status),
		CreatedAt:     fromMillis(r.CreatedAt),
	}
}

func toActionRecord(a *fund.AdminAction) *actionRecord {
	ds := make([]detailRecord, len(a.Details))
	for i, d := range a.Details {
		ds[i] = detailRecord{Key: d.Key, Value: d.Value}
	}

	return &actionRecord{
		Seq:         a.Seq,
		ID:          a.ID,
		AdminWallet: a.AdminWallet,
		Action:      a.Action,
		TargetID:    a.TargetID,
		TargetType:  a.TargetType,
		Details:     ds,
		CreatedAt:   millis(a.CreatedAt),
	}
}

func (r *actionRecord) action() *fund.AdminAction {
	ds := make(fund.Details, len(r.Details))
	for i, d := range r.Details {
		ds[i] = fund.Detail{Key: d.Key, Value: d.Value}
	}

	return &fund.AdminAction{
		Seq:         r.Seq,
		ID:          r.ID,
		AdminWallet: r.AdminWallet,
		Action:      r.Action,
		TargetID:    r.TargetID,
		TargetType:  r.TargetType,
		Details:     ds,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}
