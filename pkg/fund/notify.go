package fund

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	log "github.com/inconshreveable/log15"
)

// Notifier tells campaign representatives about their submission.
// Failures are logged by the caller and never fail an operation.
type Notifier interface {
	CampaignSubmitted(c *Campaign) error
	StatusChanged(c *Campaign, status VerificationStatus, notes string) error
}

// LogNotifier only logs the notifications.
type LogNotifier struct{}

func (LogNotifier) CampaignSubmitted(c *Campaign) error {
	log.Info("notify: campaign submitted", "id", c.ID, "to", c.RepresentativeEmail)
	return nil
}

func (LogNotifier) StatusChanged(c *Campaign, status VerificationStatus, notes string) error {
	log.Info("notify: status changed", "id", c.ID, "to", c.RepresentativeEmail, "status", status)
	return nil
}

type statusCopy struct {
	Title   string
	Message string
}

var statusCopies = map[VerificationStatus]statusCopy{
	StatusScheduled: {"Verification Scheduled", "We have scheduled a verification meeting for your campaign. Please check the details below."},
	StatusVerified:  {"Campaign Verified!", "Congratulations! Your campaign has been verified and is now live on SahayogFund. Donors can now contribute to your cause."},
	StatusRejected:  {"Verification Unsuccessful", "Unfortunately, we were unable to verify your campaign at this time. Please review the notes below for details."},
	StatusPending:   {"Status Updated", "Your campaign status has been updated."},
}

var (
	submittedTmpl = template.Must(template.New("submitted").Parse(`Namaste {{.Campaign.RepresentativeName}},

Your campaign for {{.Campaign.OrganizationName}} has been submitted for verification.

What happens next?
  1. Our team reviews your submission (1-3 business days)
  2. We schedule a verification call or site visit
  3. Upon approval, your campaign goes live!

Campaign ID: {{.Campaign.ID}}
Track status: {{.AppURL}}/verify?id={{.Campaign.ID}}
`))

	statusTmpl = template.Must(template.New("status").Parse(`Namaste {{.Campaign.RepresentativeName}},

{{.Copy.Message}}
{{if .Notes}}
Notes from our team:
{{.Notes}}
{{end}}
Campaign ID: {{.Campaign.ID}}
Track status: {{.AppURL}}/verify?id={{.Campaign.ID}}
`))
)

// SMTPNotifier sends plain text mails through an SMTP relay.
type SMTPNotifier struct {
	Addr   string // host:port
	From   string
	Auth   smtp.Auth
	AppURL string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(addr, from, user, password, appURL string) *SMTPNotifier {
	var auth smtp.Auth
	if user != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", user, password, host)
	}

	return &SMTPNotifier{
		Addr:   addr,
		From:   from,
		Auth:   auth,
		AppURL: appURL,
		send:   smtp.SendMail,
	}
}

func (s *SMTPNotifier) CampaignSubmitted(c *Campaign) error {
	var body bytes.Buffer
	err := submittedTmpl.Execute(&body, map[string]interface{}{
		"Campaign": c,
		"AppURL":   s.AppURL,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Campaign Submitted - %s | SahayogFund", c.OrganizationName)
	return s.mail(c.RepresentativeEmail, subject, body.Bytes())
}

func (s *SMTPNotifier) StatusChanged(c *Campaign, status VerificationStatus, notes string) error {
	cp, ok := statusCopies[status]
	if !ok {
		cp = statusCopies[StatusPending]
	}

	var body bytes.Buffer
	err := statusTmpl.Execute(&body, map[string]interface{}{
		"Campaign": c,
		"Copy":     cp,
		"Notes":    notes,
		"AppURL":   s.AppURL,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s - %s | SahayogFund", cp.Title, c.OrganizationName)
	return s.mail(c.RepresentativeEmail, subject, body.Bytes())
}

func (s *SMTPNotifier) mail(to, subject string, body []byte) error {
	if to == "" {
		return nil
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.Write(body)

	return s.send(s.Addr, s.Auth, s.From, []string{to}, msg.Bytes())
}
