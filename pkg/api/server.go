package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/chain"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	log "github.com/inconshreveable/log15"
)

const maxBodySize = 1 << 20

// Balancer looks up wallet balances for the navbar.
type Balancer interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

type Option func(*Server)

func WithBalancer(b Balancer) Option {
	return func(s *Server) { s.balances = b }
}

// WithFeed serves the donation feed. The same feed must be the
// service's publisher.
func WithFeed(f *Feed) Option {
	return func(s *Server) { s.feed = f }
}

// WithAdminSignatures requires admin requests to carry a signature of
// the admin wallet.
func WithAdminSignatures(require bool) Option {
	return func(s *Server) { s.requireSig = require }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the HTTP API of the fund.
type Server struct {
	svc        *fund.Service
	balances   Balancer
	feed       *Feed
	requireSig bool
	now        func() time.Time

	metrics *metrics
	router  *mux.Router
	srv     *http.Server
}

func NewServer(svc *fund.Service, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		now:    time.Now,
		router: mux.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.metrics = newMetrics(s.feed)

	r := s.router
	r.Use(s.metrics.middleware)
	r.HandleFunc("/api/submit-campaign", s.submitCampaign).Methods(http.MethodPost)
	r.HandleFunc("/api/upload-documents", s.uploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/api/get-campaign-status", s.campaignStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/update-verification-status", s.updateStatus).Methods(http.MethodPost)
	r.HandleFunc("/api/schedule-appointment", s.scheduleAppointment).Methods(http.MethodPost)
	r.HandleFunc("/api/submit-donation", s.submitDonation).Methods(http.MethodPost)
	r.HandleFunc("/api/get-donation-history", s.donationHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/campaigns", s.adminCampaigns).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/actions", s.adminActions).Methods(http.MethodGet)
	r.HandleFunc("/api/campaigns", s.campaigns).Methods(http.MethodGet)
	r.HandleFunc("/api/campaigns/{id}/stats", s.campaignStats).Methods(http.MethodGet)
	r.HandleFunc("/api/balance", s.balance).Methods(http.MethodGet)
	r.HandleFunc("/files/{bucket}/{path:.+}", s.file).Methods(http.MethodGet)
	if s.feed != nil {
		r.Handle("/api/feed", s.feed).Methods(http.MethodGet)
	}
	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{Handler: s}
	go func() {
		err := s.srv.Serve(l)
		if err != nil && err != http.ErrServerClosed {
			log.Error("error serving API server", "err", err)
		}
	}()

	log.Info("API server started", "addr", l.Addr())
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type errorBody struct {
	Error       string            `json:"error"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Error("encode response error", "err", err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func writeError(w http.ResponseWriter, err error) {
	var v *fund.ValidationError
	switch {
	case errors.As(err, &v):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Validation failed", FieldErrors: v.Fields})
	case errors.Is(err, fund.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	case errors.Is(err, errBadAdminSig):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, fund.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "Unauthorized"})
	case errors.Is(err, fund.ErrInvalidStatus):
		badRequest(w, "Invalid status")
	case errors.Is(err, fund.ErrInvalidDocument):
		badRequest(w, err.Error())
	case errors.Is(err, fund.ErrDuplicateSubmission):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
	case errors.Is(err, fund.ErrUnconfirmed):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
	if err != nil {
		badRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

// authorize checks the wallet against the allow-list and, when
// required, the request's admin signature.
func (s *Server) authorize(wallet string, r *http.Request) error {
	if !s.svc.IsAdmin(wallet) {
		return fund.ErrUnauthorized
	}

	if s.requireSig {
		return verifyAdmin(wallet, r.Header, s.now())
	}
	return nil
}

func (s *Server) submitCampaign(w http.ResponseWriter, r *http.Request) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: "Content-Type must be application/json"})
		return
	}

	var sub fund.Submission
	if !decode(w, r, &sub) {
		return
	}

	c, err := s.svc.Submit(sub)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"campaignId": c.ID,
		"message":    "Campaign submitted for verification",
	})
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(fund.MaxDocumentSize + 1<<20)
	if err != nil {
		badRequest(w, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	campaignID := r.FormValue("campaignId")
	docType := fund.DocumentType(r.FormValue("documentType"))
	if err != nil || campaignID == "" || docType == "" {
		badRequest(w, "Missing file, campaignId, or documentType")
		return
	}
	defer file.Close()

	data, err := ioutil.ReadAll(io.LimitReader(file, fund.MaxDocumentSize+1))
	if err != nil {
		writeError(w, err)
		return
	}

	url, err := s.svc.AttachDocument(campaignID, docType, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"url":          url,
		"documentType": docType,
	})
}

func (s *Server) campaignStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("campaignId")
	if id == "" {
		badRequest(w, "Missing campaignId")
		return
	}

	c, err := s.svc.Campaign(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaignId":       c.ID,
		"organizationName": c.OrganizationName,
		"status":           c.Status,
		"notes":            c.Notes,
		"scheduledDate":    c.ScheduledDate,
		"submittedAt":      c.CreatedAt,
		"updatedAt":        c.UpdatedAt,
	})
}

type statusUpdate struct {
	CampaignID  string                  `json:"campaignId"`
	Status      fund.VerificationStatus `json:"status"`
	Notes       string                  `json:"notes"`
	AdminWallet string                  `json:"adminWallet"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdate
	if !decode(w, r, &req) {
		return
	}

	if req.CampaignID == "" || req.Status == "" || req.AdminWallet == "" {
		badRequest(w, "Missing required fields")
		return
	}

	err := s.authorize(req.AdminWallet, r)
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := s.svc.UpdateStatus(req.AdminWallet, req.CampaignID, req.Status, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	s.metrics.transition(c.Status)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"campaignId": c.ID,
		"status":     c.Status,
	})
}

func (s *Server) scheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req fund.AppointmentRequest
	if !decode(w, r, &req) {
		return
	}

	if req.ScheduledBy != "" {
		err := s.authorize(req.ScheduledBy, r)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	a, err := s.svc.ScheduleAppointment(req)
	if err != nil {
		writeError(w, err)
		return
	}

	s.metrics.transition(fund.StatusScheduled)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"appointmentId": a.ID,
	})
}

func (s *Server) submitDonation(w http.ResponseWriter, r *http.Request) {
	var rc fund.Receipt
	if !decode(w, r, &rc) {
		return
	}

	d, err := s.svc.RecordDonation(r.Context(), rc)
	if errors.Is(err, fund.ErrDuplicateDonation) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"donationId": d.ID,
			"duplicate":  true,
		})
		return
	} else if err != nil {
		writeError(w, err)
		return
	}

	s.metrics.donation(d)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"donationId": d.ID,
	})
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) donationHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ds, err := s.svc.DonationHistory(fund.HistoryQuery{
		CampaignID:  q.Get("campaignId"),
		DonorWallet: q.Get("donorWallet"),
		Limit:       queryLimit(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"donations": ds})
}

func (s *Server) adminCampaigns(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("adminWallet")
	err := s.authorize(wallet, r)
	if err != nil {
		writeError(w, err)
		return
	}

	cs, err := s.svc.AdminCampaigns(wallet)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": cs})
}

func (s *Server) adminActions(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("adminWallet")
	err := s.authorize(wallet, r)
	if err != nil {
		writeError(w, err)
		return
	}

	as, err := s.svc.AdminActions(wallet, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": as})
}

func (s *Server) campaigns(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	cs, err := s.svc.ApprovedCampaigns(!all)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": cs})
}

func (s *Server) campaignStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.CampaignStats(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	pk, err := solana.PublicKeyFromBase58(r.URL.Query().Get("wallet"))
	if err != nil {
		badRequest(w, "Invalid wallet address")
		return
	}

	if s.balances == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Balance lookup is not configured"})
		return
	}

	lamports, err := s.balances.Balance(r.Context(), pk)
	if err != nil {
		log.Warn("balance lookup error", "wallet", pk, "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Failed to fetch balance"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":   pk.String(),
		"lamports": lamports,
		"sol":      chain.FormatSOL(lamports),
	})
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path := vars["path"]
	if strings.Contains(path, "..") {
		badRequest(w, "Invalid path")
		return
	}

	b, err := s.svc.Blob(vars["bucket"], path)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Data)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(b.Data)
	if err != nil {
		log.Warn("write file error", "bucket", b.Bucket, "path", b.Path, "err", err)
	}
}
