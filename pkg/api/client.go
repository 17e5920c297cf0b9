package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/gagliardetto/solana-go"
)

// Client calls the HTTP API. It records donation receipts for the
// donation flow.
type Client struct {
	base string
	hc   *http.Client
	// admin signs admin requests when set.
	admin *solana.PrivateKey
}

func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetAdminKey makes the client sign admin requests with key.
func (c *Client) SetAdminKey(key solana.PrivateKey) {
	c.admin = &key
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code        int
	Message     string
	FieldErrors map[string]string
}

func (e *StatusError) Error() string {
	if len(e.FieldErrors) > 0 {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.FieldErrors)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, admin bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if admin && c.admin != nil {
		h, err := SignAdmin(*c.admin, time.Now())
		if err != nil {
			return err
		}
		for k, v := range h {
			req.Header[k] = v
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: eb.Error, FieldErrors: eb.FieldErrors}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Record stores the receipt of a confirmed donation. Recording the same
// transaction twice is not an error.
func (c *Client) Record(ctx context.Context, r fund.Receipt) error {
	return c.do(ctx, http.MethodPost, "/api/submit-donation", r, nil, false)
}

// Submit sends a campaign for verification and returns its id.
func (c *Client) Submit(ctx context.Context, sub fund.Submission) (string, error) {
	var resp struct {
		CampaignID string `json:"campaignId"`
	}
	err := c.do(ctx, http.MethodPost, "/api/submit-campaign", sub, &resp, false)
	return resp.CampaignID, err
}

type CampaignStatus struct {
	CampaignID       string                  `json:"campaignId"`
	OrganizationName string                  `json:"organizationName"`
	Status           fund.VerificationStatus `json:"status"`
	Notes            string                  `json:"notes"`
	ScheduledDate    *time.Time              `json:"scheduledDate"`
	SubmittedAt      time.Time               `json:"submittedAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

func (c *Client) CampaignStatus(ctx context.Context, id string) (*CampaignStatus, error) {
	var st CampaignStatus
	err := c.do(ctx, http.MethodGet, "/api/get-campaign-status?campaignId="+url.QueryEscape(id), nil, &st, false)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) DonationHistory(ctx context.Context, q fund.HistoryQuery) ([]*fund.Donation, error) {
	v := url.Values{}
	if q.CampaignID != "" {
		v.Set("campaignId", q.CampaignID)
	}
	if q.DonorWallet != "" {
		v.Set("donorWallet", q.DonorWallet)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp struct {
		Donations []*fund.Donation `json:"donations"`
	}
	err := c.do(ctx, http.MethodGet, "/api/get-donation-history?"+v.Encode(), nil, &resp, false)
	return resp.Donations, err
}

// Campaigns lists the approved campaigns open for donations.
func (c *Client) Campaigns(ctx context.Context) ([]*fund.ApprovedCampaign, error) {
	var resp struct {
		Campaigns []*fund.ApprovedCampaign `json:"campaigns"`
	}
	err := c.do(ctx, http.MethodGet, "/api/campaigns", nil, &resp, false)
	return resp.Campaigns, err
}

func (c *Client) Stats(ctx context.Context, id string) (*fund.Stats, error) {
	var st fund.Stats
	err := c.do(ctx, http.MethodGet, "/api/campaigns/"+url.PathEscape(id)+"/stats", nil, &st, false)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) UpdateStatus(ctx context.Context, admin, id string, status fund.VerificationStatus, notes string) error {
	return c.do(ctx, http.MethodPost, "/api/update-verification-status", statusUpdate{
		CampaignID:  id,
		Status:      status,
		Notes:       notes,
		AdminWallet: admin,
	}, nil, true)
}

// ScheduleAppointment returns the id of the booked appointment.
func (c *Client) ScheduleAppointment(ctx context.Context, req fund.AppointmentRequest) (string, error) {
	var resp struct {
		AppointmentID string `json:"appointmentId"`
	}
	err := c.do(ctx, http.MethodPost, "/api/schedule-appointment", req, &resp, true)
	return resp.AppointmentID, err
}

func (c *Client) AdminCampaigns(ctx context.Context, admin string) ([]*fund.Campaign, error) {
	var resp struct {
		Campaigns []*fund.Campaign `json:"campaigns"`
	}
	err := c.do(ctx, http.MethodGet, "/api/admin/campaigns?adminWallet="+url.QueryEscape(admin), nil, &resp, true)
	return resp.Campaigns, err
}

// AdminAction mirrors fund.AdminAction with the details decoded as an
// object.
type AdminAction struct {
	Seq         uint64            `json:"seq"`
	ID          string            `json:"id"`
	AdminWallet string            `json:"adminWallet"`
	Action      string            `json:"action"`
	TargetID    string            `json:"targetId"`
	TargetType  string            `json:"targetType"`
	Details     map[string]string `json:"details"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func (c *Client) AdminActions(ctx context.Context, admin string, limit int) ([]*AdminAction, error) {
	v := url.Values{}
	v.Set("adminWallet", admin)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Actions []*AdminAction `json:"actions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/admin/actions?"+v.Encode(), nil, &resp, true)
	return resp.Actions, err
}
