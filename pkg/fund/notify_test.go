package fund

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func testNotifier(sent *[]sentMail) *SMTPNotifier {
	n := NewSMTPNotifier("smtp.example.org:587", "noreply@sahayog.fund", "user", "secret", "https://sahayog.fund")
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return n
}

func TestSMTPNotifierSubmitted(t *testing.T) {
	var sent []sentMail
	n := testNotifier(&sent)
	require.NotNil(t, n.Auth)

	c := &Campaign{ID: "c1", OrganizationName: "Relief Trust", RepresentativeName: "Maya", RepresentativeEmail: "maya@example.org"}
	err := n.CampaignSubmitted(c)
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, "smtp.example.org:587", sent[0].addr)
	assert.Equal(t, []string{"maya@example.org"}, sent[0].to)
	assert.Contains(t, sent[0].msg, "Subject: Campaign Submitted - Relief Trust | SahayogFund\r\n")
	assert.Contains(t, sent[0].msg, "Namaste Maya,")
	assert.Contains(t, sent[0].msg, "https://sahayog.fund/verify?id=c1")
}

func TestSMTPNotifierStatusChanged(t *testing.T) {
	var sent []sentMail
	n := testNotifier(&sent)

	c := &Campaign{ID: "c1", OrganizationName: "Relief Trust", RepresentativeEmail: "maya@example.org"}
	err := n.StatusChanged(c, StatusRejected, "documents unreadable")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].msg, "Subject: Verification Unsuccessful - Relief Trust")
	assert.Contains(t, sent[0].msg, "documents unreadable")

	// no address, nothing sent
	c.RepresentativeEmail = ""
	err = n.StatusChanged(c, StatusVerified, "")
	require.NoError(t, err)
	assert.Len(t, sent, 1)
}
