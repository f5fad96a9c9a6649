package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesync/internal/pkg/errcode"
	"github.com/xxxsen/notesync/internal/pkg/response"
	"github.com/xxxsen/notesync/internal/service"
)

type BookHandler struct {
	books *service.BookService
}

func NewBookHandler(books *service.BookService) *BookHandler {
	return &BookHandler{books: books}
}

type bookCreateRequest struct {
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	InstallationID int64  `json:"installation_id"`
}

func (h *BookHandler) Create(c *gin.Context) {
	var req bookCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	book, err := h.books.Create(c.Request.Context(), getUserID(c), service.BookCreateInput{
		Owner:          req.Owner,
		Repo:           req.Repo,
		InstallationID: req.InstallationID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	// The webhook secret is returned exactly once, at creation, for the
	// caller to configure on the repository.
	response.Success(c, gin.H{"book": book, "webhook_secret": book.WebhookSecret})
}

func (h *BookHandler) List(c *gin.Context) {
	books, err := h.books.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, books)
}

func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.books.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, book)
}

func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.books.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *BookHandler) TriggerSync(c *gin.Context) {
	book, err := h.books.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	accepted := h.books.TriggerSync(c.Request.Context(), getUserID(c), book.Owner, book.Repo)
	response.Success(c, gin.H{"accepted": accepted})
}

func (h *BookHandler) Status(c *gin.Context) {
	status, err := h.books.Status(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}

func (h *BookHandler) ListNotes(c *gin.Context) {
	notes, err := h.books.ListNotes(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, notes)
}

func (h *BookHandler) GetNote(c *gin.Context) {
	note, records, err := h.books.GetNote(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"note": note, "post_records": records})
}
