package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RunSummary describes one runner pass.
type RunSummary struct {
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	Requeued   int    `json:"requeued"`
	DurationMs int64  `json:"durationMs"`
	Paused     bool   `json:"paused"`
	Reason     string `json:"reason"`
	StartedAt  string `json:"startedAt,omitempty"`
}

// QueueStatus summarizes the job queue of one process.
type QueueStatus struct {
	Process   string      `json:"process"`
	Running   bool        `json:"running"`
	LockOwner string      `json:"lockOwner,omitempty"`
	LockUntil string      `json:"lockUntil,omitempty"`
	Batches   int         `json:"batches"`
	Pending   int         `json:"pending"`
	LastRun   *RunSummary `json:"lastRun,omitempty"`
	LastError string      `json:"lastError,omitempty"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Warning bool   `json:"warning,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	DatabasePath string        `json:"databasePath"`
	LockFilePath string        `json:"lockFilePath"`
	Queue        QueueStatus   `json:"queue"`
	Checks       []CheckResult `json:"checks"`
}

// Preview is the listing view of one content item.
type Preview struct {
	ContentID  int64             `json:"contentId"`
	Link       string            `json:"link"`
	Src        string            `json:"src"`
	Srcset     string            `json:"srcset,omitempty"`
	ClassName  string            `json:"className"`
	HasPreview bool              `json:"hasPreview"`
	Sizes      map[string]string `json:"sizes,omitempty"`
}

// PreviewRecord is the stored size-to-URL mapping of one item.
type PreviewRecord struct {
	ContentID int64             `json:"contentId"`
	Sizes     map[string]string `json:"sizes"`
}

// ContentRequest identifies one content item, as sent by content hooks.
type ContentRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// BulkRequest lists content items for a bulk action.
type BulkRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
}

// QueuedResponse reports how many items a trigger queued.
type QueuedResponse struct {
	Queued int `json:"queued"`
}

// BulkDeleteResponse reports the outcome of a bulk delete.
type BulkDeleteResponse struct {
	Requested int              `json:"requested"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    map[int64]string `json:"errors,omitempty"`
}

// CancelResponse reports the outcome of a queue cancellation.
type CancelResponse struct {
	Batches int  `json:"batches"`
	Running bool `json:"running"`
}

// ResetResponse reports the outcome of a full preview reset.
type ResetResponse struct {
	Records int `json:"records"`
}

// Settings is the settings record as exchanged with clients.
type Settings struct {
	PostTypes             []string `json:"postTypes"`
	Crop                  bool     `json:"crop"`
	Zoom                  bool     `json:"zoom"`
	Delay                 int      `json:"delay"`
	FeaturedImageFallback bool     `json:"featuredImageFallback"`
	EligibleTypes         []string `json:"eligibleTypes,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
