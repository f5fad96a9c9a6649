package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/service"
)

const (
	eventHeader     = "X-GitHub-Event"
	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

type WebhookHandler struct {
	books *service.BookService
}

func NewWebhookHandler(books *service.BookService) *WebhookHandler {
	return &WebhookHandler{books: books}
}

type pushPayload struct {
	Repository struct {
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
		Name string `json:"name"`
	} `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Commits []model.CommitChange `json:"commits"`
}

// HandlePush is GitHub-facing, so it answers with plain status codes instead
// of the app's JSON envelope: GitHub marks anything non-2xx as a failed
// delivery and that is the contract the gateway leans on.
//
// The owning book's secret signs the delivery, so the payload is peeked at
// (unverified) just far enough to find the book; a delivery for an untracked
// repository is acknowledged without any verification or side effect.
func (h *WebhookHandler) HandlePush(c *gin.Context) {
	if c.GetHeader(eventHeader) != "push" {
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		webhookReject(c, http.StatusBadRequest, "unreadable body")
		return
	}
	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		webhookReject(c, http.StatusBadRequest, "invalid payload")
		return
	}
	owner := payload.Repository.Owner.Login
	name := payload.Repository.Name
	if owner == "" || name == "" {
		webhookReject(c, http.StatusBadRequest, "missing repository coordinates")
		return
	}

	ctx := c.Request.Context()
	book, err := h.books.FindByOwnerRepo(ctx, owner, name)
	if err != nil {
		if appErr.IsNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"synced": 0, "added": []string{}, "posted": []string{}})
			return
		}
		logutil.GetLogger(ctx).Error("webhook book lookup failed", zap.Error(err))
		webhookReject(c, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !verifySignature(book.WebhookSecret, body, c.GetHeader(signatureHeader)) {
		webhookReject(c, http.StatusUnauthorized, "invalid signature")
		return
	}

	result, posted, err := h.books.SyncPush(ctx, book, payload.Commits)
	resp := gin.H{
		"synced": result.Synced(),
		"added":  result.AddedIDs(),
		"posted": posted,
	}
	if len(result.Errors) > 0 {
		resp["path_errors"] = result.Errors
	}
	if err != nil {
		// The attempt died partway; what was applied stays applied and
		// is reported. Redelivering the same payload is safe.
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func verifySignature(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	given, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

func webhookReject(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": message}})
}
