package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReference returns PREFIX_YYYYMMDD_XXXXXXXX, used as the gateway receipt id
func GenerateReference(prefix string) string {
	return fmt.Sprintf("%s_%s_%s", prefix, time.Now().UTC().Format("20060102"), RandomCode(8))
}

// RandomCode returns n characters from [A-Z0-9]
func RandomCode(n int) string {
	result := make([]byte, n)
	for i := range result {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceCharset))))
		if err != nil {
			idx = big.NewInt(int64(time.Now().UnixNano() % int64(len(referenceCharset))))
		}
		result[i] = referenceCharset[idx.Int64()]
	}
	return string(result)
}
