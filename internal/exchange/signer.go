package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Sign returns hex(HMAC-SHA256(secret, method + timestamp + path + body)).
func Sign(secret, method, timestamp, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(path))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Timestamp formats t as the Unix seconds string expected by the exchange.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
