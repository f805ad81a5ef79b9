package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/portfoliovalue/backend/internal/api/response"
)

// timeTokenWindow is the granularity of the time token. A token is accepted
// for the current window and the previous one, so clients have at least five
// minutes of validity regardless of when inside a window they signed.
const timeTokenWindow = 5 * time.Minute

// APIKeyMiddleware protects mutating endpoints with a shared secret. A
// request must carry the key itself (X-API-Key) and an HMAC time token
// (X-Time-Token) derived from the key, so a leaked request cannot be
// replayed indefinitely. The expected key comes from INTERNAL_API_KEY.
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := os.Getenv("INTERNAL_API_KEY")
		if expected == "" {
			response.RespondError(w, http.StatusInternalServerError, "server misconfiguration", "Authentication not loaded")
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
			return
		}
		if !hmac.Equal([]byte(key), []byte(expected)) {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
			return
		}

		token := r.Header.Get("X-Time-Token")
		if token == "" {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing Time token")
			return
		}
		if !validTimeToken(expected, token) {
			response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Time token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GenerateTimeToken signs the current time window with the API key.
func GenerateTimeToken(apiKey string) string {
	return signWindow(apiKey, time.Now().Unix()/int64(timeTokenWindow.Seconds()))
}

// validTimeToken accepts the current and previous window.
func validTimeToken(apiKey, token string) bool {
	window := time.Now().Unix() / int64(timeTokenWindow.Seconds())
	for _, w := range []int64{window, window - 1} {
		if hmac.Equal([]byte(signWindow(apiKey, w)), []byte(token)) {
			return true
		}
	}
	return false
}

func signWindow(apiKey string, window int64) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	fmt.Fprintf(mac, "%d", window)
	return hex.EncodeToString(mac.Sum(nil))
}
