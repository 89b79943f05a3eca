package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// codeAlphabet skips 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomCode returns n characters drawn from codeAlphabet.
func RandomCode(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[k.Int64()])
	}
	return b.String(), nil
}

// NewReferralCode returns an 8 character referral code.
func NewReferralCode() (string, error) { return RandomCode(8) }

// NewCouponCode returns a prefixed coupon code such as "REF-7KQ2M9XA".
func NewCouponCode(prefix string) (string, error) {
	c, err := RandomCode(8)
	if err != nil {
		return "", err
	}
	return prefix + "-" + c, nil
}

// NewInvoiceNo builds "INV-20240131-1a2b3c4d" from the date and a UUID.
func NewInvoiceNo(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(id[:8]))
}

// NewTicketCode returns a random UUID used as an attendee's admission code.
func NewTicketCode() string { return uuid.NewString() }

// NewObjectKey builds a storage key under prefix keeping ext.
func NewObjectKey(prefix, ext string) string {
	return fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), uuid.NewString(), ext)
}
