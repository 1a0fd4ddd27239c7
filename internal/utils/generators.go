package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	return uuid.NewString()
}

func GenerateBookingID() string {
	return "bk_" + uuid.NewString()
}

func GenerateTransactionID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("txn_%d_%09d", timestamp, randomNum.Int64())
}

// GenerateBookingReference returns a short human-readable reference for
// front-of-house use, e.g. "ABC-123456". Ambiguous letters are left out.
func GenerateBookingReference() string {
	letters := "ABCDEFGHJKMNPQRSTUVWXYZ"
	var b strings.Builder
	for i := 0; i < 3; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		b.WriteByte(letters[n.Int64()])
	}
	num, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("%s-%06d", b.String(), num.Int64())
}
