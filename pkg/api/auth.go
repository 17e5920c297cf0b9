package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	HeaderAdminTimestamp = "X-Admin-Timestamp"
	HeaderAdminSignature = "X-Admin-Signature"

	adminSigSkew = 5 * time.Minute
)

var errBadAdminSig = errors.New("invalid admin signature")

// AdminMessage is the message an admin wallet signs to authenticate a
// request made at unix time ts.
func AdminMessage(wallet string, ts int64) []byte {
	return []byte(fmt.Sprintf("sahayog-admin:%s:%d", wallet, ts))
}

// SignAdmin returns the headers authenticating key's wallet at now.
func SignAdmin(key solana.PrivateKey, now time.Time) (http.Header, error) {
	ts := now.Unix()
	sig, err := key.Sign(AdminMessage(key.PublicKey().String(), ts))
	if err != nil {
		return nil, err
	}

	h := make(http.Header)
	h.Set(HeaderAdminTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderAdminSignature, sig.String())
	return h, nil
}

func verifyAdmin(wallet string, h http.Header, now time.Time) error {
	pk, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return errBadAdminSig
	}

	ts, err := strconv.ParseInt(h.Get(HeaderAdminTimestamp), 10, 64)
	if err != nil {
		return errBadAdminSig
	}

	d := now.Sub(time.Unix(ts, 0))
	if d > adminSigSkew || d < -adminSigSkew {
		return fmt.Errorf("%w: timestamp outside the allowed window", errBadAdminSig)
	}

	sig, err := solana.SignatureFromBase58(h.Get(HeaderAdminSignature))
	if err != nil {
		return errBadAdminSig
	}

	if !sig.Verify(pk, AdminMessage(wallet, ts)) {
		return errBadAdminSig
	}
	return nil
}
