package handler

import (
	"stablehand/internal/selection/models"
	"stablehand/internal/selection/projection"
)

// ListProcessesResponse is the HTTP response for GET /stables/{stableID}/selection-processes.
type ListProcessesResponse struct {
	Processes []*projection.ProcessView `json:"processes"`
}

// ListEntriesResponse is the HTTP response for GET /selection-processes/{processID}/entries.
type ListEntriesResponse struct {
	Entries []*models.SelectionEntry `json:"entries"`
}
