package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrAuthMissingHash = errors.New("hash is not present in auth data")
	ErrAuthBadHash     = errors.New("auth hash mismatch")
	ErrAuthExpired     = errors.New("auth data expired")
)

// AuthData is the caller identity carried in the X-Chat-Auth header.
type AuthData struct {
	UserID   int64
	AuthDate time.Time
}

// dataCheckString joins every key=value pair except hash, sorted, separated by newlines.
func dataCheckString(q url.Values) string {
	var pairs []string
	for k, v := range q {
		if k != "hash" && len(v) > 0 {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, v[0]))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\n")
}

func authHash(secret, data string) string {
	secretKey := hmac.New(sha256.New, []byte("PropChatAuth"))
	secretKey.Write([]byte(secret))

	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// SignAuth builds the X-Chat-Auth header value for userID.
func SignAuth(secret string, userID int64, authDate time.Time) string {
	q := url.Values{}
	q.Set("user", strconv.FormatInt(userID, 10))
	q.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	q.Set("hash", authHash(secret, dataCheckString(q)))
	return q.Encode()
}

// VerifyAuth checks the signature of an X-Chat-Auth header value.
// maxAge <= 0 disables the expiry check.
func VerifyAuth(raw, secret string, maxAge time.Duration, now time.Time) (AuthData, error) {
	var data AuthData

	q, err := url.ParseQuery(raw)
	if err != nil {
		return data, fmt.Errorf("failed to parse auth data: %w", err)
	}

	hash := q.Get("hash")
	if hash == "" {
		return data, ErrAuthMissingHash
	}
	if !hmac.Equal([]byte(authHash(secret, dataCheckString(q))), []byte(hash)) {
		return data, ErrAuthBadHash
	}

	data.UserID, err = strconv.ParseInt(q.Get("user"), 10, 64)
	if err != nil || data.UserID <= 0 {
		return data, fmt.Errorf("invalid user in auth data: %q", q.Get("user"))
	}
	unix, err := strconv.ParseInt(q.Get("auth_date"), 10, 64)
	if err != nil {
		return data, fmt.Errorf("invalid auth_date: %q", q.Get("auth_date"))
	}
	data.AuthDate = time.Unix(unix, 0)

	if maxAge > 0 && now.Sub(data.AuthDate) > maxAge {
		return data, ErrAuthExpired
	}
	return data, nil
}
