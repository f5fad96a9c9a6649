package model

const (
	NoteScopePublic  = "PUBLIC"
	NoteScopePrivate = "PRIVATE"
)

type Note struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`
	Path   string `json:"path"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Scope  string `json:"scope"`
	Ctime  int64  `json:"ctime"`
	Mtime  int64  `json:"mtime"`
}
