// Пакет generated — контракт HTTP API File Organizer по openapi.json:
// модели, ServerInterface и chi-обвязка в раскладке oapi-codegen.
// Поддерживается вручную; при изменении openapi.json правятся оба.
package generated

import (
	"time"
)

const (
	BearerAuthScopes = "bearerAuth.Scopes"
)

// Defines values for ReconcileIssueType.
const (
	MissingFile  ReconcileIssueType = "missing_file"
	OrphanedFile ReconcileIssueType = "orphaned_file"
	SizeMismatch ReconcileIssueType = "size_mismatch"
)

// CategoryGroup defines model for CategoryGroup.
type CategoryGroup struct {
	Files []FileEntry  `json:"files"`
	Info  CategoryInfo `json:"info"`
}

// CategoryInfo defines model for CategoryInfo.
type CategoryInfo struct {
	Category string `json:"category"`
	Color    string `json:"color"`
	Folder   string `json:"folder"`
	Icon     string `json:"icon"`
}

// CategoryStats defines model for CategoryStats.
type CategoryStats struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// ClearResponse defines model for ClearResponse.
type ClearResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FileEntry defines model for FileEntry.
type FileEntry struct {
	Category     string `json:"category"`
	CreatedAt    string `json:"createdAt"`
	Extension    string `json:"extension"`
	Filename     string `json:"filename"`
	Id           string `json:"id"`
	LastModified string `json:"lastModified"`
	Mimetype     string `json:"mimetype"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
}

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// ReconcileIssue defines model for ReconcileIssue.
type ReconcileIssue struct {
	Message  string             `json:"message"`
	Path     string             `json:"path"`
	RecordId *string            `json:"recordId,omitempty"`
	Type     ReconcileIssueType `json:"type"`
}

// ReconcileIssueType defines model for ReconcileIssue.Type.
type ReconcileIssueType string

// ReconcileResponse defines model for ReconcileResponse.
type ReconcileResponse struct {
	CompletedAt    time.Time        `json:"completedAt"`
	Issues         []ReconcileIssue `json:"issues"`
	RecordsChecked int              `json:"recordsChecked"`
	StartedAt      time.Time        `json:"startedAt"`
	Summary        ReconcileSummary `json:"summary"`
}

// ReconcileSummary defines model for ReconcileSummary.
type ReconcileSummary struct {
	MissingFiles   int `json:"missingFiles"`
	Ok             int `json:"ok"`
	OrphanedFiles  int `json:"orphanedFiles"`
	SizeMismatches int `json:"sizeMismatches"`
}

// StatsResponse defines model for StatsResponse.
type StatsResponse struct {
	Categories    map[string]CategoryStats `json:"categories"`
	LastOrganized *string                  `json:"lastOrganized"`
	TotalFiles    int                      `json:"totalFiles"`
	TotalSize     int64                    `json:"totalSize"`
}

// UploadResponse defines model for UploadResponse.
type UploadResponse struct {
	Organized  map[string]CategoryGroup `json:"organized"`
	Statistics UploadStatistics         `json:"statistics"`
	Success    bool                     `json:"success"`
}

// UploadStatistics defines model for UploadStatistics.
type UploadStatistics struct {
	Categories       int      `json:"categories"`
	CategoriesDetail []string `json:"categoriesDetail"`
	TotalFiles       int      `json:"totalFiles"`
	TotalSize        int64    `json:"totalSize"`
}
