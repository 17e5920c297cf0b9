package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	campaignPrefix    = []byte("campaign/")
	approvedPrefix    = []byte("approved/")
	donationPrefix    = []byte("donation/")
	signaturePrefix   = []byte("sig/")
	appointmentPrefix = []byte("appointment/")
	actionPrefix      = []byte("action/")
	blobPrefix        = []byte("blob/")
	actionSeqKey      = []byte("meta/action-seq")
)

var errActionExists = errors.New("audit log entry already exists")

// DB keeps the fund tables in a KV store, it implements fund.Store.
type DB struct {
	kv KV

	// guards the audit log sequence and the signature index.
	mu sync.Mutex
}

func NewDB(kv KV) *DB {
	return &DB{kv: kv}
}

func (d *DB) Close() error {
	return d.kv.Close()
}

func key(prefix []byte, parts ...string) []byte {
	k := append([]byte(nil), prefix...)
	for i, p := range parts {
		if i > 0 {
			k = append(k, '/')
		}
		k = append(k, p...)
	}
	return k
}

func actionKey(seq uint64) []byte {
	k := append([]byte(nil), actionPrefix...)
	return binary.BigEndian.AppendUint64(k, seq)
}

func (d *DB) put(k []byte, v interface{}) error {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return d.kv.Put(k, b)
}

func (d *DB) get(k []byte, v interface{}, what string) error {
	b, err := d.kv.Get(k)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %s: %w", what, k, fund.ErrNotFound)
	} else if err != nil {
		return err
	}
	return rlp.DecodeBytes(b, v)
}

func (d *DB) PutCampaign(c *fund.Campaign) error {
	return d.put(key(campaignPrefix, c.ID), toCampaignRecord(c))
}

func (d *DB) Campaign(id string) (*fund.Campaign, error) {
	var r campaignRecord
	err := d.get(key(campaignPrefix, id), &r, "campaign")
	if err != nil {
		return nil, err
	}
	return r.campaign(), nil
}

func (d *DB) Campaigns() ([]*fund.Campaign, error) {
	var cs []*fund.Campaign
	var decodeErr error
	err := d.kv.Iterate(campaignPrefix, func(_, v []byte) bool {
		var r campaignRecord
		if decodeErr = rlp.DecodeBytes(v, &r); decodeErr != nil {
			return false
		}
		cs = append(cs, r.campaign())
		return true
	})
	if err != nil {
		return nil, err
	}
	return cs, decodeErr
}

// PutApproved stores the approved campaign keyed by its pending id,
// a campaign has at most one approved record.
func (d *DB) PutApproved(a *fund.ApprovedCampaign) error {
	return d.put(key(approvedPrefix, a.PendingID), toApprovedRecord(a))
}

func (d *DB) Approved(pendingID string) (*fund.ApprovedCampaign, error) {
	var r approvedRecord
	err := d.get(key(approvedPrefix, pendingID), &r, "approved campaign")
	if err != nil {
		return nil, err
	}
	return r.approved(), nil
}

func (d *DB) ApprovedCampaigns() ([]*fund.ApprovedCampaign, error) {
	var as []*fund.ApprovedCampaign
	var decodeErr error
	err := d.kv.Iterate(approvedPrefix, func(_, v []byte) bool {
		var r approvedRecord
		if decodeErr = rlp.DecodeBytes(v, &r); decodeErr != nil {
			return false
		}
		as = append(as, r.approved())
		return true
	})
	if err != nil {
		return nil, err
	}
	return as, decodeErr
}

// PutDonation stores the donation and indexes it by transaction
// signature. A signature can only be indexed once.
func (d *DB) PutDonation(dn *fund.Donation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sigKey := key(signaturePrefix, dn.TxSignature)
	ok, err := d.kv.Has(sigKey)
	if err != nil {
		return err
	}

	if ok {
		return fmt.Errorf("signature %s: %w", dn.TxSignature, fund.ErrDuplicateDonation)
	}

	err = d.put(key(donationPrefix, dn.ID), toDonationRecord(dn))
	if err != nil {
		return err
	}
	return d.kv.Put(sigKey, []byte(dn.ID))
}

func (d *DB) Donation(id string) (*fund.Donation, error) {
	var r donationRecord
	err := d.get(key(donationPrefix, id), &r, "donation")
	if err != nil {
		return nil, err
	}
	return r.donation(), nil
}

func (d *DB) DonationBySignature(sig string) (*fund.Donation, error) {
	id, err := d.kv.Get(key(signaturePrefix, sig))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("donation with signature %s: %w", sig, fund.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return d.Donation(string(id))
}

func (d *DB) Donations() ([]*fund.Donation, error) {
	var ds []*fund.Donation
	var decodeErr error
	err := d.kv.Iterate(donationPrefix, func(_, v []byte) bool {
		var r donationRecord
		if decodeErr = rlp.DecodeBytes(v, &r); decodeErr != nil {
			return false
		}
		ds = append(ds, r.donation())
		return true
	})
	if err != nil {
		return nil, err
	}
	return ds, decodeErr
}

func (d *DB) PutAppointment(a *fund.Appointment) error {
	return d.put(key(appointmentPrefix, a.CampaignID, a.ID), toAppointmentRecord(a))
}

func (d *DB) Appointments(campaignID string) ([]*fund.Appointment, error) {
	var as []*fund.Appointment
	var decodeErr error
	prefix := append(key(appointmentPrefix, campaignID), '/')
	err := d.kv.Iterate(prefix, func(_, v []byte) bool {
		var r appointmentRecord
		if decodeErr = rlp.DecodeBytes(v, &r); decodeErr != nil {
			return false
		}
		as = append(as, r.appointment())
		return true
	})
	if err != nil {
		return nil, err
	}
	return as, decodeErr
}

func (d *DB) nextActionSeq() (uint64, error) {
	b, err := d.kv.Get(actionSeqKey)
	if errors.Is(err, ErrNotFound) {
		return 1, nil
	} else if err != nil {
		return 0, err
	}

	if len(b) != 8 {
		return 0, fmt.Errorf("corrupted audit log sequence, len: %d", len(b))
	}
	return binary.BigEndian.Uint64(b) + 1, nil
}

// AppendAction appends the action to the audit log. There is no way
// to update or delete an entry once it is appended.
func (d *DB) AppendAction(a *fund.AdminAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	seq, err := d.nextActionSeq()
	if err != nil {
		return err
	}

	k := actionKey(seq)
	ok, err := d.kv.Has(k)
	if err != nil {
		return err
	}

	if ok {
		return fmt.Errorf("seq %d: %w", seq, errActionExists)
	}

	r := toActionRecord(a)
	r.Seq = seq
	err = d.put(k, r)
	if err != nil {
		return err
	}

	err = d.kv.Put(actionSeqKey, binary.BigEndian.AppendUint64(nil, seq))
	if err != nil {
		return err
	}

	a.Seq = seq
	return nil
}

// Actions returns the audit log in append order.
func (d *DB) Actions() ([]*fund.AdminAction, error) {
	var as []*fund.AdminAction
	var decodeErr error
	err := d.kv.Iterate(actionPrefix, func(_, v []byte) bool {
		var r actionRecord
		if decodeErr = rlp.DecodeBytes(v, &r); decodeErr != nil {
			return false
		}
		as = append(as, r.action())
		return true
	})
	if err != nil {
		return nil, err
	}
	return as, decodeErr
}

func (d *DB) PutBlob(b *fund.Blob) error {
	return d.put(key(blobPrefix, b.Bucket, b.Path), &blobRecord{
		ContentType: b.ContentType,
		Data:        b.Data,
		CreatedAt:   millis(b.CreatedAt),
	})
}

func (d *DB) Blob(bucket, path string) (*fund.Blob, error) {
	var r blobRecord
	err := d.get(key(blobPrefix, bucket, path), &r, "blob")
	if err != nil {
		return nil, err
	}

	return &fund.Blob{
		Bucket:      bucket,
		Path:        path,
		ContentType: r.ContentType,
		Data:        r.Data,
		CreatedAt:   fromMillis(r.CreatedAt),
	}, nil
}
