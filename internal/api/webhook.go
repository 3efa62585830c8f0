package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dshills/dropsearch/internal/logging"
)

// maxWebhookBody bounds the notification payload
const maxWebhookBody = 1 << 20

// webhookNotification is the Dropbox change notification body
type webhookNotification struct {
	ListFolder struct {
		Accounts []string `json:"accounts"`
	} `json:"list_folder"`
}

// handleWebhookChallenge echoes the verification challenge
func (s *Server) handleWebhookChallenge(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	if challenge == "" {
		sendError(w, http.StatusBadRequest, "Missing challenge", "")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = io.WriteString(w, challenge)
}

// handleWebhookNotify acknowledges a change notification and wakes the syncer
func (s *Server) handleWebhookNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid notification", err.Error())
		return
	}

	if s.cfg.AppSecret != "" && !validSignature(s.cfg.AppSecret, body, r.Header.Get("X-Dropbox-Signature")) {
		logging.WithContext(r.Context()).Warn("webhook signature mismatch")
		sendError(w, http.StatusForbidden, "Invalid signature", "")
		return
	}

	var notification webhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid notification", err.Error())
		return
	}

	if len(notification.ListFolder.Accounts) > 0 && s.syncer != nil {
		s.syncer.Notify()
	}
	w.WriteHeader(http.StatusOK)
}

// validSignature checks the hex HMAC-SHA256 of body under secret
func validSignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
