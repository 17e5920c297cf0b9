package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/store"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fundWallet = "8HACvxLFboKua6ARScPZsqHVCMAQ7MniL8AhNDxomV9Y"
	donor      = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

type fakeBalancer struct {
	lamports uint64
	err      error
}

func (f *fakeBalancer) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return f.lamports, f.err
}

type testEnv struct {
	srv    *httptest.Server
	client *Client
	admin  solana.PrivateKey
	feed   *Feed
}

func newEnv(t *testing.T, requireSig bool) *testEnv {
	admin, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}

	feed := NewFeed()
	svc := fund.NewService(store.NewDB(store.NewMemory()), fund.Config{
		AdminWallets: []string{admin.PublicKey().String()},
		PublicURL:    "http://files.test",
	}, fund.WithPublisher(feed))

	s := NewServer(svc,
		WithFeed(feed),
		WithAdminSignatures(requireSig),
		WithBalancer(&fakeBalancer{lamports: 2500000000}),
	)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	c.SetAdminKey(admin)
	return &testEnv{srv: srv, client: c, admin: admin, feed: feed}
}

func submission() fund.Submission {
	return fund.Submission{
		OrganizationName:    "Karnali Water Project",
		RepresentativeName:  "Hari Thapa",
		Description:         strings.Repeat("Clean drinking water for Jumla villages. ", 2),
		WalletAddress:       fundWallet,
		VerificationDetails: "Registered NGO, SWC no. 4321.",
		EventDate:           time.Now().AddDate(0, 2, 0).Format("2006-01-02"),
		LocationAddress:     "Jumla",
		LocationCoords:      "29.27, 82.18",
		GoalAmount:          decimal.NewFromInt(40),
	}
}

func post(t *testing.T, url, contentType, body string) (int, map[string]interface{}) {
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var m map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&m)
	return resp.StatusCode, m
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func TestSubmitCampaignHTTP(t *testing.T) {
	env := newEnv(t, false)
	url := env.srv.URL + "/api/submit-campaign"

	code, body := post(t, url, "text/plain", "{}")
	assert.Equal(t, http.StatusUnsupportedMediaType, code)
	assert.Equal(t, "Content-Type must be application/json", body["error"])

	code, body = post(t, url, "application/json", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid JSON body", body["error"])

	code, body = post(t, url, "application/json; charset=utf-8", `{"organizationName":"ab"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	fields, ok := body["fieldErrors"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "organizationName")
	assert.Contains(t, fields, "walletAddress")

	b, err := json.Marshal(submission())
	require.NoError(t, err)
	code, body = post(t, url, "application/json", string(b))
	assert.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["campaignId"])

	code, _ = post(t, url, "application/json", string(b))
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestVerificationFlowHTTP(t *testing.T) {
	env := newEnv(t, true)
	ctx := context.Background()
	admin := env.admin.PublicKey().String()

	id, err := env.client.Submit(ctx, submission())
	require.NoError(t, err)

	st, err := env.client.CampaignStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, fund.StatusPending, st.Status)

	_, err = env.client.CampaignStatus(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	// not on the allow-list
	err = env.client.UpdateStatus(ctx, donor, id, fund.StatusVerified, "")
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	// on the allow-list but unsigned
	unsigned := NewClient(env.srv.URL)
	err = unsigned.UpdateStatus(ctx, admin, id, fund.StatusVerified, "")
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))

	err = env.client.UpdateStatus(ctx, admin, id, "approved", "")
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	apptID, err := env.client.ScheduleAppointment(ctx, fund.AppointmentRequest{
		CampaignID:    id,
		ScheduledDate: time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		ScheduledBy:   admin,
		MeetingType:   fund.MeetingPhoneCall,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, apptID)

	err = env.client.UpdateStatus(ctx, admin, id, fund.StatusVerified, "all good")
	require.NoError(t, err)
	err = env.client.UpdateStatus(ctx, admin, id, fund.StatusVerified, "again")
	require.NoError(t, err)

	cs, err := env.client.Campaigns(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, id, cs[0].PendingID)

	all, err := env.client.AdminCampaigns(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	actions, err := env.client.AdminActions(ctx, admin, 0)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, "update_status_verified", actions[0].Action)
	assert.Equal(t, "verified", actions[0].Details["previousStatus"])
	assert.Equal(t, "schedule_appointment", actions[2].Action)
	assert.Equal(t, apptID, actions[2].Details["appointmentId"])

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `sahayog_verification_transitions_total{status="verified"} 2`)
	assert.Contains(t, string(b), `sahayog_http_requests_total{code="201",route="/api/submit-campaign"} 1`)
}

func TestDonationHTTP(t *testing.T) {
	env := newEnv(t, false)
	ctx := context.Background()
	admin := env.admin.PublicKey().String()

	id, err := env.client.Submit(ctx, submission())
	require.NoError(t, err)
	err = env.client.UpdateStatus(ctx, admin, id, fund.StatusVerified, "")
	require.NoError(t, err)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.srv.URL, "http")+"/api/feed", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return env.feed.Clients() == 1 }, time.Second, 10*time.Millisecond)

	sig := solana.Signature{9}.String()
	r := fund.Receipt{
		CampaignID:  id,
		DonorWallet: donor,
		DonorName:   "Gita",
		Lamports:    1500000,
		TxSignature: sig,
		Anonymous:   true,
	}
	require.NoError(t, env.client.Record(ctx, r))
	// recording again is accepted
	require.NoError(t, env.client.Record(ctx, r))

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var live fund.Donation
	require.NoError(t, ws.ReadJSON(&live))
	assert.Equal(t, "Anonymous", live.DonorWallet)
	assert.Equal(t, sig, live.TxSignature)

	ds, err := env.client.DonationHistory(ctx, fund.HistoryQuery{CampaignID: id})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "Anonymous Donor", ds[0].DonorName)

	st, err := env.client.Stats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500000), st.TotalLamports)
	assert.Equal(t, 1, st.Donations)

	r.TxSignature = "bad"
	err = env.client.Record(ctx, r)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.FieldErrors, "txSignature")
}

func TestUploadDocumentHTTP(t *testing.T) {
	env := newEnv(t, false)
	id, err := env.client.Submit(context.Background(), submission())
	require.NoError(t, err)

	upload := func(docType, contentType string, data []byte) (int, map[string]interface{}) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("campaignId", id))
		require.NoError(t, mw.WriteField("documentType", docType))
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="file"; filename="reg.pdf"`}
		h["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		return post(t, env.srv.URL+"/api/upload-documents", mw.FormDataContentType(), buf.String())
	}

	code, body := upload("ngo_registration", "application/pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, code)
	url, _ := body["url"].(string)
	require.True(t, strings.HasPrefix(url, "http://files.test/files/documents/"+id+"/ngo_registration_"))

	resp, err := http.Get(env.srv.URL + strings.TrimPrefix(url, "http://files.test"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	data, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	code, _ = upload("passport", "application/pdf", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = upload("tax_exemption", "text/html", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = post(t, env.srv.URL+"/api/upload-documents", "multipart/form-data; boundary=x", "--x--\r\n")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBalanceHTTP(t *testing.T) {
	env := newEnv(t, false)

	resp, err := http.Get(env.srv.URL + "/api/balance?wallet=" + donor)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Lamports uint64 `json:"lamports"`
		SOL      string `json:"sol"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint64(2500000000), body.Lamports)
	assert.Equal(t, "2.5", body.SOL)

	resp2, err := http.Get(env.srv.URL + "/api/balance?wallet=nope")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestVerifyAdmin(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}
	wallet := key.PublicKey().String()
	now := time.Unix(1700000000, 0)

	h, err := SignAdmin(key, now)
	require.NoError(t, err)
	assert.NoError(t, verifyAdmin(wallet, h, now.Add(4*time.Minute)))
	assert.Error(t, verifyAdmin(wallet, h, now.Add(6*time.Minute)))
	assert.Error(t, verifyAdmin(wallet, h, now.Add(-6*time.Minute)))
	assert.Error(t, verifyAdmin(donor, h, now))

	assert.True(t, errors.Is(verifyAdmin(wallet, http.Header{}, now), errBadAdminSig))
}
