package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"crashd/domain/apperr"
)

// maxInitDataAge bounds how old a signed WebApp payload may be before it is
// treated as a replay.
const maxInitDataAge = 24 * time.Hour

// TelegramUser is the identity extracted from a validated WebApp payload
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// ValidateTelegramInitData validates a Telegram WebApp initData payload per
// the published protocol: the hash field must equal
// HMAC-SHA256(dataCheckString, HMAC-SHA256(botToken, "WebAppData")) where
// dataCheckString is the remaining fields as sorted key=value lines.
func ValidateTelegramInitData(initData, botToken string) (*TelegramUser, error) {
	if botToken == "" {
		return nil, apperr.New(apperr.FailedPrecondition, "telegram authentication is not configured")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, "malformed init data", err)
	}
	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, apperr.New(apperr.Unauthenticated, "init data is missing its hash")
	}

	lines := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s=%s", key, values.Get(key)))
	}
	sort.Strings(lines)
	dataCheckString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(gotHash), []byte(wantHash)) {
		return nil, apperr.New(apperr.Unauthenticated, "init data signature mismatch")
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		unix, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidArgument, "malformed auth date", err)
		}
		if time.Since(time.Unix(unix, 0)) > maxInitDataAge {
			return nil, apperr.New(apperr.Unauthenticated, "init data has expired")
		}
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, "malformed user payload", err)
	}
	if user.ID == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "user payload is missing an id")
	}
	return &user, nil
}
