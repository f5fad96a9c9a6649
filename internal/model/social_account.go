package model

type SocialAccount struct {
	UserID     string `json:"user_id"`
	Platform   string `json:"platform"`
	Identifier string `json:"identifier"`
	Credential string `json:"-"`
	ServiceURL string `json:"service_url"`
	Ctime      int64  `json:"ctime"`
	Mtime      int64  `json:"mtime"`
}
