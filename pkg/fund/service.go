package fund

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/inconshreveable/log15"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrDuplicateSubmission = errors.New("a similar campaign was recently submitted, please wait before resubmitting")
	ErrDuplicateDonation   = errors.New("donation already recorded")
	ErrUnconfirmed         = errors.New("transaction is not confirmed on chain")
	ErrInvalidDocument     = errors.New("invalid document")
)

const (
	duplicateWindow     = time.Hour
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	recentReceiptsSize  = 4096
)

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Store persists the campaign, donation and audit records.
type Store interface {
	PutCampaign(c *Campaign) error
	Campaign(id string) (*Campaign, error)
	Campaigns() ([]*Campaign, error)

	PutApproved(a *ApprovedCampaign) error
	Approved(pendingID string) (*ApprovedCampaign, error)
	ApprovedCampaigns() ([]*ApprovedCampaign, error)

	PutDonation(d *Donation) error
	DonationBySignature(sig string) (*Donation, error)
	Donations() ([]*Donation, error)

	PutAppointment(a *Appointment) error
	Appointments(campaignID string) ([]*Appointment, error)

	// AppendAction assigns the next sequence number to the action and
	// stores it. Stored actions are never modified.
	AppendAction(a *AdminAction) error
	Actions() ([]*AdminAction, error)

	PutBlob(b *Blob) error
	Blob(bucket, path string) (*Blob, error)
}

// SignatureVerifier checks a transaction signature against the chain.
type SignatureVerifier interface {
	SignatureConfirmed(ctx context.Context, sig string) (bool, error)
}

// Publisher receives every newly recorded donation.
type Publisher interface {
	PublishDonation(d *Donation)
}

type Config struct {
	AdminWallets []string
	// PublicURL prefixes the URLs of uploaded documents.
	PublicURL string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithVerifier(v SignatureVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service implements campaign submission, the verification workflow
// and the donation ledger.
type Service struct {
	store     Store
	notifier  Notifier
	verifier  SignatureVerifier
	publisher Publisher
	admins    map[string]bool
	publicURL string
	now       func() time.Time

	// recently recorded signatures, checked before the store index.
	recent *lru.Cache

	mu sync.Mutex
}

func NewService(store Store, cfg Config, opts ...Option) *Service {
	c, err := lru.New(recentReceiptsSize)
	if err != nil {
		panic(err)
	}

	admins := make(map[string]bool)
	for _, w := range cfg.AdminWallets {
		if w = strings.TrimSpace(w); w != "" {
			admins[w] = true
		}
	}

	s := &Service{
		store:     store,
		notifier:  LogNotifier{},
		admins:    admins,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		now:       time.Now,
		recent:    c,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IsAdmin reports whether the wallet is in the admin allow-list.
func (s *Service) IsAdmin(wallet string) bool {
	return wallet != "" && s.admins[wallet]
}

// Submit validates and stores a new campaign in the pending state.
func (s *Service) Submit(sub Submission) (*Campaign, error) {
	now := s.now()
	c, err := sub.Normalize(now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	all, err := s.store.Campaigns()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	for _, e := range all {
		if e.OrganizationName == c.OrganizationName &&
			e.WalletAddress == c.WalletAddress &&
			now.Sub(e.CreatedAt) < duplicateWindow {
			s.mu.Unlock()
			return nil, ErrDuplicateSubmission
		}
	}

	c.ID = uuid.NewString()
	c.Status = StatusPending
	c.CreatedAt = now
	c.UpdatedAt = now
	err = s.store.PutCampaign(c)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.Info("campaign submitted", "id", c.ID, "org", c.OrganizationName)
	if c.RepresentativeEmail != "" {
		if err := s.notifier.CampaignSubmitted(c); err != nil {
			log.Error("send submission notification error", "id", c.ID, "err", err)
		}
	}
	return c, nil
}

// Campaign returns the pending-table record of the campaign.
func (s *Service) Campaign(id string) (*Campaign, error) {
	return s.store.Campaign(id)
}

// UpdateStatus moves a campaign to the target status. Any status can
// be reached from any other. Entering verified materializes the
// approved campaign unless it already exists.
func (s *Service) UpdateStatus(actor, id string, status VerificationStatus, notes string) (*Campaign, error) {
	if !s.IsAdmin(actor) {
		return nil, ErrUnauthorized
	}

	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := s.now()
	s.mu.Lock()
	c, err := s.store.Campaign(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	prev := c.Status
	c.Status = status
	c.Notes = notes
	c.UpdatedAt = now
	if status == StatusVerified {
		c.VerificationDate = &now
	}

	err = s.store.PutCampaign(c)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if status == StatusVerified {
		err = s.materialize(c, now)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	err = s.store.AppendAction(&AdminAction{
		ID:          uuid.NewString(),
		AdminWallet: actor,
		Action:      "update_status_" + string(status),
		TargetID:    id,
		TargetType:  "campaign",
		Details: Details{
			{Key: "notes", Value: notes},
			{Key: "previousStatus", Value: string(prev)},
		},
		CreatedAt: now,
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.Info("campaign status updated", "id", id, "from", prev, "to", status, "admin", actor)
	if c.RepresentativeEmail != "" {
		if err := s.notifier.StatusChanged(c, status, notes); err != nil {
			log.Error("send status notification error", "id", id, "err", err)
		}
	}
	return c, nil
}

// materialize must be called with s.mu held.
func (s *Service) materialize(c *Campaign, now time.Time) error {
	_, err := s.store.Approved(c.ID)
	if err == nil {
		log.Info("approved campaign already exists", "id", c.ID)
		return nil
	}

	if !errors.Is(err, ErrNotFound) {
		return err
	}

	return s.store.PutApproved(approve(c, now))
}

// AppointmentRequest schedules a verification meeting.
type AppointmentRequest struct {
	CampaignID    string      `json:"campaignId"`
	ScheduledDate string      `json:"scheduledDate"`
	ScheduledBy   string      `json:"scheduledBy"`
	MeetingType   MeetingType `json:"meetingType"`
	MeetingLink   string      `json:"meetingLink"`
	Notes         string      `json:"notes"`
}

// ScheduleAppointment books a verification meeting and moves the
// campaign to the scheduled state.
func (s *Service) ScheduleAppointment(req AppointmentRequest) (*Appointment, error) {
	var v ValidationError
	if req.CampaignID == "" {
		v.add("campaignId", "Campaign id is required")
	}
	if req.ScheduledBy == "" {
		v.add("scheduledBy", "Scheduled by is required")
	}
	if req.MeetingType == "" {
		v.add("meetingType", "Meeting type is required")
	} else if !req.MeetingType.Valid() {
		v.add("meetingType", "Invalid meeting type")
	}

	var date time.Time
	if req.ScheduledDate == "" {
		v.add("scheduledDate", "Scheduled date is required")
	} else {
		var err error
		date, err = ParseDate(req.ScheduledDate)
		if err != nil {
			v.add("scheduledDate", "Invalid date format")
		}
	}

	if err := v.errOrNil(); err != nil {
		return nil, err
	}

	if !s.IsAdmin(req.ScheduledBy) {
		return nil, ErrUnauthorized
	}

	now := s.now()
	s.mu.Lock()
	c, err := s.store.Campaign(req.CampaignID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	a := &Appointment{
		ID:            uuid.NewString(),
		CampaignID:    c.ID,
		ScheduledDate: date,
		ScheduledBy:   req.ScheduledBy,
		MeetingType:   req.MeetingType,
		MeetingLink:   req.MeetingLink,
		Notes:         req.Notes,
		Status:        AppointmentScheduled,
		CreatedAt:     now,
	}
	err = s.store.PutAppointment(a)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	c.Status = StatusScheduled
	c.ScheduledDate = &date
	c.UpdatedAt = now
	err = s.store.PutCampaign(c)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	err = s.store.AppendAction(&AdminAction{
		ID:          uuid.NewString(),
		AdminWallet: req.ScheduledBy,
		Action:      "schedule_appointment",
		TargetID:    c.ID,
		TargetType:  "campaign",
		Details: Details{
			{Key: "appointmentId", Value: a.ID},
			{Key: "scheduledDate", Value: date.Format(time.RFC3339)},
			{Key: "meetingType", Value: string(a.MeetingType)},
		},
		CreatedAt: now,
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.Info("verification appointment scheduled", "campaign", c.ID, "appointment", a.ID, "date", date)
	if c.RepresentativeEmail != "" {
		if err := s.notifier.StatusChanged(c, StatusScheduled, req.Notes); err != nil {
			log.Error("send schedule notification error", "id", c.ID, "err", err)
		}
	}
	return a, nil
}

// Appointments returns the meetings booked for a campaign.
func (s *Service) Appointments(actor, campaignID string) ([]*Appointment, error) {
	if !s.IsAdmin(actor) {
		return nil, ErrUnauthorized
	}
	return s.store.Appointments(campaignID)
}

// AttachDocument stores an uploaded verification document and links
// it from the campaign. It returns the public URL of the document.
func (s *Service) AttachDocument(campaignID string, docType DocumentType, filename, contentType string, data []byte) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("%w: invalid document type", ErrInvalidDocument)
	}

	if len(data) > MaxDocumentSize {
		return "", fmt.Errorf("%w: file too large, max 5MB", ErrInvalidDocument)
	}

	if !allowedContentTypes[contentType] {
		return "", fmt.Errorf("%w: invalid file type, allowed: JPEG, PNG, WebP, PDF", ErrInvalidDocument)
	}

	now := s.now()
	_, err := s.store.Campaign(campaignID)
	if err != nil {
		return "", err
	}

	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}

	b := &Blob{
		Bucket:      docType.Bucket(),
		Path:        fmt.Sprintf("%s/%s_%d.%s", campaignID, docType, now.UnixMilli(), ext),
		ContentType: contentType,
		Data:        data,
		CreatedAt:   now,
	}
	err = s.store.PutBlob(b)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/files/%s/%s", s.publicURL, b.Bucket, b.Path)

	s.mu.Lock()
	err = s.linkDocument(campaignID, docType, url, now)
	s.mu.Unlock()
	if err != nil {
		log.Error("link document to campaign error", "id", campaignID, "type", docType, "err", err)
	}

	return url, nil
}

func (s *Service) linkDocument(id string, docType DocumentType, url string, now time.Time) error {
	c, err := s.store.Campaign(id)
	if err != nil {
		return err
	}

	switch docType {
	case DocNGORegistration:
		c.NGORegistrationURL = url
	case DocTaxExemption:
		c.TaxExemptionURL = url
	case DocRepresentativeID:
		c.RepresentativeIDURL = url
	case DocRepresentativePhoto:
		c.RepresentativePhotoURL = url
	}
	c.UpdatedAt = now
	return s.store.PutCampaign(c)
}

// Blob returns an uploaded file.
func (s *Service) Blob(bucket, path string) (*Blob, error) {
	return s.store.Blob(bucket, path)
}

// AdminCampaigns lists every submitted campaign, newest first.
func (s *Service) AdminCampaigns(actor string) ([]*Campaign, error) {
	if !s.IsAdmin(actor) {
		return nil, ErrUnauthorized
	}

	cs, err := s.store.Campaigns()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].CreatedAt.After(cs[j].CreatedAt)
	})
	return cs, nil
}

// AdminActions returns the audit log, newest first.
func (s *Service) AdminActions(actor string, limit int) ([]*AdminAction, error) {
	if !s.IsAdmin(actor) {
		return nil, ErrUnauthorized
	}

	as, err := s.store.Actions()
	if err != nil {
		return nil, err
	}

	sort.Slice(as, func(i, j int) bool {
		return as[i].Seq > as[j].Seq
	})
	if limit > 0 && len(as) > limit {
		as = as[:limit]
	}
	return as, nil
}

// ApprovedCampaigns lists the verified campaigns, most recently
// verified first.
func (s *Service) ApprovedCampaigns(openOnly bool) ([]*ApprovedCampaign, error) {
	as, err := s.store.ApprovedCampaigns()
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := as[:0]
	for _, a := range as {
		if openOnly && !a.Open(now) {
			continue
		}
		r = append(r, a)
	}

	sort.SliceStable(r, func(i, j int) bool {
		return r[i].VerifiedAt.After(r[j].VerifiedAt)
	})
	return r, nil
}

// RecordDonation stores the receipt of a donation. Receipts are
// idempotent on the transaction signature: recording the same
// signature again returns the first donation with ErrDuplicateDonation.
func (s *Service) RecordDonation(ctx context.Context, r Receipt) (*Donation, error) {
	err := r.Validate()
	if err != nil {
		return nil, err
	}

	if s.recent.Contains(r.TxSignature) {
		d, err := s.store.DonationBySignature(r.TxSignature)
		if err == nil {
			return d, ErrDuplicateDonation
		}
	}

	_, err = s.store.Campaign(r.CampaignID)
	if err != nil {
		return nil, err
	}

	if s.verifier != nil {
		ok, err := s.verifier.SignatureConfirmed(ctx, r.TxSignature)
		if err != nil {
			return nil, fmt.Errorf("verify donation signature: %w", err)
		}

		if !ok {
			return nil, ErrUnconfirmed
		}
	}

	d := &Donation{
		ID:           uuid.NewString(),
		CampaignID:   r.CampaignID,
		DonorWallet:  r.DonorWallet,
		DonorMessage: r.Message,
		Lamports:     r.Lamports,
		TxSignature:  r.TxSignature,
		Anonymous:    r.Anonymous,
		CreatedAt:    s.now(),
	}
	if !r.Anonymous {
		d.DonorName = strings.TrimSpace(r.DonorName)
	}

	s.mu.Lock()
	existing, err := s.store.DonationBySignature(r.TxSignature)
	if err == nil {
		s.mu.Unlock()
		s.recent.Add(r.TxSignature, struct{}{})
		return existing, ErrDuplicateDonation
	} else if !errors.Is(err, ErrNotFound) {
		s.mu.Unlock()
		return nil, err
	}

	err = s.store.PutDonation(d)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	a, err := s.store.Approved(d.CampaignID)
	if err == nil {
		a.RaisedLamports += d.Lamports
		err = s.store.PutApproved(a)
	}
	s.mu.Unlock()
	if err != nil && !errors.Is(err, ErrNotFound) {
		// the donation itself is stored, only the running total is stale.
		log.Error("update raised amount error", "campaign", d.CampaignID, "err", err)
	}

	s.recent.Add(d.TxSignature, struct{}{})
	log.Info("donation recorded", "id", d.ID, "campaign", d.CampaignID, "lamports", d.Lamports, "sig", d.TxSignature)
	if s.publisher != nil {
		s.publisher.PublishDonation(d.Public())
	}
	return d, nil
}

// Public returns a copy of the donation with the donor identity
// masked when the donation is anonymous.
func (d *Donation) Public() *Donation {
	c := *d
	if c.Anonymous {
		c.DonorWallet = "Anonymous"
		c.DonorName = "Anonymous Donor"
	}
	return &c
}

type HistoryQuery struct {
	CampaignID  string
	DonorWallet string
	Limit       int
}

// DonationHistory returns the matching donations, newest first, with
// anonymous donors masked.
func (s *Service) DonationHistory(q HistoryQuery) ([]*Donation, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	ds, err := s.store.Donations()
	if err != nil {
		return nil, err
	}

	r := make([]*Donation, 0, len(ds))
	for _, d := range ds {
		if q.CampaignID != "" && d.CampaignID != q.CampaignID {
			continue
		}
		if q.DonorWallet != "" && d.DonorWallet != q.DonorWallet {
			continue
		}
		r = append(r, d)
	}

	sort.SliceStable(r, func(i, j int) bool {
		return r[i].CreatedAt.After(r[j].CreatedAt)
	})
	if len(r) > limit {
		r = r[:limit]
	}

	for i := range r {
		r[i] = r[i].Public()
	}
	return r, nil
}

type Stats struct {
	CampaignID    string `json:"campaignId"`
	TotalLamports uint64 `json:"totalLamports"`
	Donations     int    `json:"donations"`
	Donors        int    `json:"donors"`
}

// CampaignStats sums up the recorded donations of a campaign.
func (s *Service) CampaignStats(id string) (*Stats, error) {
	_, err := s.store.Campaign(id)
	if err != nil {
		return nil, err
	}

	ds, err := s.store.Donations()
	if err != nil {
		return nil, err
	}

	st := &Stats{CampaignID: id}
	donors := make(map[string]bool)
	for _, d := range ds {
		if d.CampaignID != id {
			continue
		}
		st.TotalLamports += d.Lamports
		st.Donations++
		donors[d.DonorWallet] = true
	}
	st.Donors = len(donors)
	return st, nil
}
