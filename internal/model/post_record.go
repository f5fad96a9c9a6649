package model

const (
	PostStatusPosted = "POSTED"
	PostStatusError  = "ERROR"
)

type PostRecord struct {
	ID           string `json:"id"`
	NoteID       string `json:"note_id"`
	Platform     string `json:"platform"`
	Status       string `json:"status"`
	PostURI      string `json:"post_uri"`
	PostCID      string `json:"post_cid"`
	ErrorMessage string `json:"error_message"`
	Ctime        int64  `json:"ctime"`
}
