package apimodel

import "encoding/json"

const (
	// MaxUploadSize mirrors the service's 10MB upload limit.
	MaxUploadSize = 10 * 1024 * 1024

	// UploadField is the multipart field the service reads the file from.
	UploadField = "file"

	UploadExtension = ".csv"
)

// Dataset is one entry of GET history/.
type Dataset struct {
	ID         int64  `json:"id"`
	File       string `json:"file"`
	UploadedAt string `json:"uploaded_at"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	RowCount   int    `json:"row_count"`
}

// UploadResponse is returned by POST upload/. Data is the service's analysis
// summary, which the client does not interpret.
type UploadResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	FileID int64           `json:"file_id"`
}

// CompareRequest is the body of POST compare/.
type CompareRequest struct {
	FileID1 int64 `json:"file_id_1"`
	FileID2 int64 `json:"file_id_2"`
}

// ExportRequest carries the password the service encrypts the report with.
type ExportRequest struct {
	Password string `json:"password"`
}

// ExportFormat selects the report flavour.
type ExportFormat string

const (
	ExportPDF   ExportFormat = "pdf"
	ExportExcel ExportFormat = "excel"
)

// Extension returns the file extension for the format.
func (f ExportFormat) Extension() string {
	switch f {
	case ExportExcel:
		return ".xlsx"
	default:
		return ".pdf"
	}
}

// Route returns the export endpoint for a dataset.
func (f ExportFormat) Route(fileID int64) string {
	if f == ExportExcel {
		return RouteExportExcel(fileID)
	}
	return RouteExportPDF(fileID)
}
