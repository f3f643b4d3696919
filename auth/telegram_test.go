package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"crashd/domain/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:test-bot-token"

// signInitData builds a WebApp payload signed the way Telegram signs it
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	lines := make([]string, 0, len(fields))
	for key, value := range fields {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(lines)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func TestValidateTelegramInitData(t *testing.T) {
	freshAuthDate := fmt.Sprintf("%d", time.Now().Unix())

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		initData := signInitData(t, testBotToken, map[string]string{
			"auth_date": freshAuthDate,
			"query_id":  "AAE1",
			"user":      `{"id":42,"username":"alice","first_name":"Alice"}`,
		})

		user, err := ValidateTelegramInitData(initData, testBotToken)
		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("rejects a payload signed with another bot token", func(t *testing.T) {
		initData := signInitData(t, "999:other-token", map[string]string{
			"auth_date": freshAuthDate,
			"user":      `{"id":42,"username":"alice"}`,
		})

		_, err := ValidateTelegramInitData(initData, testBotToken)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("rejects a tampered field", func(t *testing.T) {
		initData := signInitData(t, testBotToken, map[string]string{
			"auth_date": freshAuthDate,
			"user":      `{"id":42,"username":"alice"}`,
		})
		tampered := strings.Replace(initData, "alice", "mallory", 1)

		_, err := ValidateTelegramInitData(tampered, testBotToken)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("rejects a stale payload", func(t *testing.T) {
		initData := signInitData(t, testBotToken, map[string]string{
			"auth_date": fmt.Sprintf("%d", time.Now().Add(-48*time.Hour).Unix()),
			"user":      `{"id":42,"username":"alice"}`,
		})

		_, err := ValidateTelegramInitData(initData, testBotToken)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("rejects a payload without a hash", func(t *testing.T) {
		_, err := ValidateTelegramInitData("user=%7B%22id%22%3A42%7D", testBotToken)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("fails closed when no bot token is configured", func(t *testing.T) {
		_, err := ValidateTelegramInitData("anything", "")
		assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	})
}
