package model

const (
	SyncStatusWaiting = "WAITING"
	SyncStatusSynced  = "SYNCED"
	SyncStatusError   = "ERROR"
)

type Book struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	InstallationID int64  `json:"installation_id"`
	WebhookSecret  string `json:"-"`
	Ctime          int64  `json:"ctime"`
	Mtime          int64  `json:"mtime"`
}

type SyncStatus struct {
	BookID       string `json:"book_id"`
	Status       string `json:"status"`
	LastSyncedAt *int64 `json:"last_synced_at"`
	Mtime        int64  `json:"mtime"`
}
