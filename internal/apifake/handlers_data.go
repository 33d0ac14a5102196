package apifake

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-analytics-client/apimodel"
)

const historyLimit = 10

type dataset struct {
	ID         int64
	OwnerID    int64
	Filename   string
	Size       int64
	Rows       int
	Columns    []string
	UploadedAt time.Time
}

func (d *dataset) entry() apimodel.Dataset {
	return apimodel.Dataset{
		ID:         d.ID,
		File:       "uploads/" + d.Filename,
		UploadedAt: d.UploadedAt.Format(time.RFC3339),
		Filename:   d.Filename,
		FileSize:   d.Size,
		RowCount:   d.Rows,
	}
}

func (d *dataset) summary() map[string]any {
	return map[string]any{
		"id":         d.ID,
		"filename":   d.Filename,
		"total_rows": d.Rows,
		"columns":    d.Columns,
	}
}

// profileOf builds the profile body. Must be called with mu held.
func (s *Server) profileOf(u *user) apimodel.Profile {
	p := apimodel.Profile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		DateJoined: u.DateJoined.Format(time.RFC3339),
		Profile:    &apimodel.ProfileDetails{Bio: u.Bio, Company: u.Company, Phone: u.Phone},
	}
	for _, d := range s.datasets {
		if d.OwnerID == u.ID {
			p.UploadCount++
			p.TotalStorage += d.Size
		}
	}
	p.StorageMB = float64(p.TotalStorage) / (1024 * 1024)
	return p
}

// ownedDataset looks up the path's {id} for the caller. Must be called with mu
// held.
func (s *Server) ownedDataset(r *http.Request) (*dataset, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, false
	}
	d, ok := s.datasets[id]
	if !ok || d.OwnerID != userIDFrom(r) {
		return nil, false
	}
	return d, true
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Dataset not found"})
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		u := s.userByID(userIDFrom(r))
		if u == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}
		writeJSON(w, http.StatusOK, s.profileOf(u))
	}
}

func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.ProfileUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		u := s.userByID(userIDFrom(r))
		if u == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}

		if req.Email != nil {
			if !strings.Contains(*req.Email, "@") {
				writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"Enter a valid email address."}})
				return
			}
			u.Email = *req.Email
		}
		if req.FirstName != nil {
			u.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			u.LastName = *req.LastName
		}
		if req.Profile != nil {
			if req.Profile.Bio != nil {
				u.Bio = req.Profile.Bio
			}
			if req.Profile.Company != nil {
				u.Company = req.Profile.Company
			}
			if req.Profile.Phone != nil {
				u.Phone = req.Profile.Phone
			}
		}
		writeJSON(w, http.StatusOK, s.profileOf(u))
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.ChangePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"new_password": {"This field is required."}})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		u := s.userByID(userIDFrom(r))
		if u == nil || !checkPasswordHash(req.OldPassword, u.PasswordHash) {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"old_password": {"Wrong password."}})
			return
		}
		hash, err := hashPassword(req.NewPassword)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		u.PasswordHash = hash
		writeJSON(w, http.StatusOK, apimodel.Detail{Detail: "Password updated successfully"})
	}
}

func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, apimodel.MaxUploadSize+1024*1024)
		file, header, err := r.FormFile(apimodel.UploadField)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
			return
		}
		defer file.Close()

		if !strings.EqualFold(filepath.Ext(header.Filename), apimodel.UploadExtension) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Only CSV files are allowed"})
			return
		}
		content, err := io.ReadAll(io.LimitReader(file, apimodel.MaxUploadSize+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if len(content) > apimodel.MaxUploadSize {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File size exceeds 10MB limit"})
			return
		}

		lines := strings.Split(strings.TrimRight(string(content), "\r\n"), "\n")
		if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "CSV file is empty"})
			return
		}
		columns := strings.Split(strings.TrimSpace(lines[0]), ",")

		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextDatasetID++
		d := &dataset{
			ID:         s.nextDatasetID,
			OwnerID:    userIDFrom(r),
			Filename:   header.Filename,
			Size:       int64(len(content)),
			Rows:       len(lines) - 1,
			Columns:    columns,
			UploadedAt: time.Now().UTC(),
		}
		s.datasets[d.ID] = d
		writeJSON(w, http.StatusCreated, map[string]any{
			"status":  "success",
			"data":    d.summary(),
			"file_id": d.ID,
		})
	}
}

func (s *Server) AnalysisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		d, ok := s.ownedDataset(r)
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, d.summary())
	}
}

func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		owner := userIDFrom(r)
		var owned []*dataset
		for _, d := range s.datasets {
			if d.OwnerID == owner {
				owned = append(owned, d)
			}
		}
		sort.Slice(owned, func(i, j int) bool { return owned[i].ID > owned[j].ID })
		if len(owned) > historyLimit {
			owned = owned[:historyLimit]
		}

		entries := make([]apimodel.Dataset, 0, len(owned))
		for _, d := range owned {
			entries = append(entries, d.entry())
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) CompareHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.CompareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID1 == 0 || req.FileID2 == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Two file IDs required"})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		owner := userIDFrom(r)
		a, okA := s.datasets[req.FileID1]
		b, okB := s.datasets[req.FileID2]
		if !okA || !okB || a.OwnerID != owner || b.OwnerID != owner {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"file1":      a.summary(),
			"file2":      b.summary(),
			"row_delta":  b.Rows - a.Rows,
			"size_delta": b.Size - a.Size,
		})
	}
}

func (s *Server) DeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		d, ok := s.ownedDataset(r)
		if !ok {
			notFound(w)
			return
		}
		delete(s.datasets, d.ID)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Dataset deleted successfully"})
	}
}

func (s *Server) ExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := apimodel.ExportFormat(r.PathValue("format"))
		if format != apimodel.ExportPDF && format != apimodel.ExportExcel {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown export format"})
			return
		}

		var req apimodel.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Password is required"})
			return
		}

		s.mu.Lock()
		d, ok := s.ownedDataset(r)
		s.mu.Unlock()
		if !ok {
			notFound(w)
			return
		}

		var body bytes.Buffer
		contentType := "application/pdf"
		if format == apimodel.ExportExcel {
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			body.WriteString("PK\x03\x04")
		} else {
			body.WriteString("%PDF-1.4\n")
		}
		body.WriteString("report for " + d.Filename + "\n")

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="report_`+strconv.FormatInt(d.ID, 10)+format.Extension()+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body.Bytes())
	}
}
