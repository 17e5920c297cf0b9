package store

import (
	"errors"
	"testing"
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	b, err := OpenBadger("")
	if err != nil {
		panic(err)
	}

	l, err := Open("leveldb", t.TempDir())
	if err != nil {
		panic(err)
	}

	kvs := map[string]KV{
		"memory":  NewMemory(),
		"leveldb": l,
		"badger":  b,
	}
	t.Cleanup(func() {
		for _, kv := range kvs {
			kv.Close()
		}
	})
	return kvs
}

var now = time.UnixMilli(1760000000000).UTC()

func TestKVIteratePrefix(t *testing.T) {
	for name, kv := range backends(t) {
		require.NoError(t, kv.Put([]byte("a/2"), []byte("two")))
		require.NoError(t, kv.Put([]byte("a/1"), []byte("one")))
		require.NoError(t, kv.Put([]byte("b/1"), []byte("other")))

		var keys []string
		err := kv.Iterate([]byte("a/"), func(k, v []byte) bool {
			keys = append(keys, string(k))
			return true
		})
		require.NoError(t, err, name)
		assert.Equal(t, []string{"a/1", "a/2"}, keys, name)

		_, err = kv.Get([]byte("missing"))
		assert.True(t, errors.Is(err, ErrNotFound), name)

		require.NoError(t, kv.Delete([]byte("a/1")))
		ok, err := kv.Has([]byte("a/1"))
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
}

func TestCampaignRoundTrip(t *testing.T) {
	db := NewDB(NewMemory())
	scheduled := now.Add(48 * time.Hour)
	c := &fund.Campaign{
		ID:               "c1",
		OrganizationName: "Kathmandu Relief",
		WalletAddress:    "8HACvxLFboKua6ARScPZsqHVCMAQ7MniL8AhNDxomV9Y",
		OfficialLinks:    []string{"https://example.org"},
		GoalAmount:       decimal.RequireFromString("12.5"),
		Status:           fund.StatusScheduled,
		ScheduledDate:    &scheduled,
		EventDate:        now.Add(30 * 24 * time.Hour),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.PutCampaign(c))

	got, err := db.Campaign("c1")
	require.NoError(t, err)
	assert.Equal(t, c.OrganizationName, got.OrganizationName)
	assert.True(t, c.GoalAmount.Equal(got.GoalAmount))
	assert.Equal(t, c.OfficialLinks, got.OfficialLinks)
	assert.Equal(t, fund.StatusScheduled, got.Status)
	assert.True(t, scheduled.Equal(*got.ScheduledDate))
	assert.Nil(t, got.VerificationDate)
	assert.True(t, now.Equal(got.CreatedAt))

	_, err = db.Campaign("nope")
	assert.True(t, errors.Is(err, fund.ErrNotFound))
}

func TestApprovedKeyedByPendingID(t *testing.T) {
	db := NewDB(NewMemory())
	a := &fund.ApprovedCampaign{PendingID: "c1", Active: true, EndDate: now.Add(fund.ApprovedDuration), VerifiedAt: now}
	require.NoError(t, db.PutApproved(a))
	a.RaisedLamports = 10
	require.NoError(t, db.PutApproved(a))

	all, err := db.ApprovedCampaigns()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint64(10), all[0].RaisedLamports)
}

func TestDonationSignatureIndex(t *testing.T) {
	for name, kv := range backends(t) {
		db := NewDB(kv)
		d := &fund.Donation{ID: "d1", CampaignID: "c1", Lamports: 5, TxSignature: "sig1", CreatedAt: now}
		require.NoError(t, db.PutDonation(d), name)

		got, err := db.DonationBySignature("sig1")
		require.NoError(t, err, name)
		assert.Equal(t, "d1", got.ID)

		dup := &fund.Donation{ID: "d2", CampaignID: "c1", Lamports: 5, TxSignature: "sig1", CreatedAt: now}
		err = db.PutDonation(dup)
		assert.True(t, errors.Is(err, fund.ErrDuplicateDonation), name)

		ds, err := db.Donations()
		require.NoError(t, err)
		assert.Len(t, ds, 1, name)
	}
}

func TestAuditLogAppendOnly(t *testing.T) {
	db := NewDB(NewMemory())
	first := &fund.AdminAction{ID: "a1", Action: "update_status_verified", Details: fund.Details{{Key: "notes", Value: "ok"}}, CreatedAt: now}
	require.NoError(t, db.AppendAction(first))
	assert.Equal(t, uint64(1), first.Seq)

	before, err := db.Actions()
	require.NoError(t, err)

	second := &fund.AdminAction{ID: "a2", Action: "schedule_appointment", CreatedAt: now}
	require.NoError(t, db.AppendAction(second))
	assert.Equal(t, uint64(2), second.Seq)

	after, err := db.Actions()
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, "a2", after[1].ID)
	v, ok := after[0].Details.Get("notes")
	assert.True(t, ok)
	assert.Equal(t, "ok", v)
}

func TestAppointmentsPerCampaign(t *testing.T) {
	db := NewDB(NewMemory())
	require.NoError(t, db.PutAppointment(&fund.Appointment{ID: "p1", CampaignID: "c1", MeetingType: fund.MeetingVideoCall, CreatedAt: now}))
	require.NoError(t, db.PutAppointment(&fund.Appointment{ID: "p2", CampaignID: "c10", MeetingType: fund.MeetingInPerson, CreatedAt: now}))

	as, err := db.Appointments("c1")
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.Equal(t, "p1", as[0].ID)
}

func TestBlob(t *testing.T) {
	db := NewDB(NewMemory())
	b := &fund.Blob{Bucket: "documents", Path: "c1/tax_exemption_1.pdf", ContentType: "application/pdf", Data: []byte("%PDF"), CreatedAt: now}
	require.NoError(t, db.PutBlob(b))

	got, err := db.Blob("documents", "c1/tax_exemption_1.pdf")
	require.NoError(t, err)
	assert.Equal(t, b, got)
}
