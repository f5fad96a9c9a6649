package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesync/internal/pkg/errcode"
	"github.com/xxxsen/notesync/internal/pkg/response"
	"github.com/xxxsen/notesync/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type socialAccountRequest struct {
	Identifier  string `json:"identifier"`
	AppPassword string `json:"app_password"`
	ServiceURL  string `json:"service_url"`
}

func (h *AccountHandler) SetSocial(c *gin.Context) {
	var req socialAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	err := h.accounts.SetSocial(c.Request.Context(), getUserID(c), service.SocialAccountInput{
		Identifier:  req.Identifier,
		AppPassword: req.AppPassword,
		ServiceURL:  req.ServiceURL,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *AccountHandler) GetSocial(c *gin.Context) {
	account, err := h.accounts.GetSocial(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, account)
}
