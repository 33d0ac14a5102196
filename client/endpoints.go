package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-analytics-client/apimodel"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
)

func (c *Client) Profile(ctx context.Context) (*apimodel.Profile, error) {
	resp, err := c.Call(ctx, http.MethodGet, apimodel.RouteProfile, nil)
	if err != nil {
		return nil, fmt.Errorf("[client Profile] %w", err)
	}
	var p apimodel.Profile
	if err := resp.Decode(&p); err != nil {
		return nil, fmt.Errorf("[client Profile] %w", err)
	}
	return &p, nil
}

// UpdateProfile applies the non-nil fields of update.
func (c *Client) UpdateProfile(ctx context.Context, update apimodel.ProfileUpdate) (*apimodel.Profile, error) {
	if update.Empty() {
		return nil, fmt.Errorf("[client UpdateProfile] %w: nothing to update", apperrors.ErrInvalidRequest)
	}
	resp, err := c.Call(ctx, http.MethodPut, apimodel.RouteProfile, update)
	if err != nil {
		return nil, fmt.Errorf("[client UpdateProfile] %w", err)
	}
	var p apimodel.Profile
	if err := resp.Decode(&p); err != nil {
		return nil, fmt.Errorf("[client UpdateProfile] %w", err)
	}
	return &p, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("[client ChangePassword] %w: new password is required", apperrors.ErrInvalidRequest)
	}
	_, err := c.Call(ctx, http.MethodPost, apimodel.RouteChangePassword, apimodel.ChangePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return fmt.Errorf("[client ChangePassword] %w", err)
	}
	return nil
}

// Upload sends a CSV dataset. The service's file rules are checked before
// anything goes on the wire.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*apimodel.UploadResponse, error) {
	if !strings.EqualFold(filepath.Ext(filename), apimodel.UploadExtension) {
		return nil, fmt.Errorf("[client Upload] %w: only %s files are accepted", apperrors.ErrInvalidRequest, apimodel.UploadExtension)
	}
	data, err := io.ReadAll(io.LimitReader(r, apimodel.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("[client Upload] read %s: %w", filename, err)
	}
	if len(data) > apimodel.MaxUploadSize {
		return nil, fmt.Errorf("[client Upload] %w: %s exceeds %d bytes", apperrors.ErrInvalidRequest, filename, apimodel.MaxUploadSize)
	}

	call, err := dispatch.NewMultipartCall(apimodel.RouteUpload, apimodel.UploadField, filepath.Base(filename), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("[client Upload] %w", err)
	}
	var out apimodel.UploadResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("[client Upload] %w", err)
	}
	return &out, nil
}

// UploadFile is Upload for a file on disk.
func (c *Client) UploadFile(ctx context.Context, path string) (*apimodel.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[client UploadFile] %w", err)
	}
	defer f.Close()
	return c.Upload(ctx, path, f)
}

// Analysis returns the service's analysis of a dataset as raw JSON.
func (c *Client) Analysis(ctx context.Context, fileID int64) (json.RawMessage, error) {
	resp, err := c.Call(ctx, http.MethodGet, apimodel.RouteAnalysis(fileID), nil)
	if err != nil {
		return nil, fmt.Errorf("[client Analysis] %w", err)
	}
	return json.RawMessage(resp.Body), nil
}

// History lists the most recent uploads, newest first.
func (c *Client) History(ctx context.Context) ([]apimodel.Dataset, error) {
	resp, err := c.Call(ctx, http.MethodGet, apimodel.RouteHistory, nil)
	if err != nil {
		return nil, fmt.Errorf("[client History] %w", err)
	}
	var out []apimodel.Dataset
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("[client History] %w", err)
	}
	return out, nil
}

func (c *Client) Compare(ctx context.Context, fileID1, fileID2 int64) (json.RawMessage, error) {
	resp, err := c.Call(ctx, http.MethodPost, apimodel.RouteCompare, apimodel.CompareRequest{FileID1: fileID1, FileID2: fileID2})
	if err != nil {
		return nil, fmt.Errorf("[client Compare] %w", err)
	}
	return json.RawMessage(resp.Body), nil
}

func (c *Client) DeleteDataset(ctx context.Context, fileID int64) error {
	if _, err := c.Call(ctx, http.MethodDelete, apimodel.RouteDelete(fileID), nil); err != nil {
		return fmt.Errorf("[client DeleteDataset] %w", err)
	}
	return nil
}

// ExportPDF returns a password-protected PDF report.
func (c *Client) ExportPDF(ctx context.Context, fileID int64, password string) ([]byte, error) {
	return c.Export(ctx, apimodel.ExportPDF, fileID, password)
}

// ExportExcel returns a password-protected spreadsheet report.
func (c *Client) ExportExcel(ctx context.Context, fileID int64, password string) ([]byte, error) {
	return c.Export(ctx, apimodel.ExportExcel, fileID, password)
}

func (c *Client) Export(ctx context.Context, format apimodel.ExportFormat, fileID int64, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("[client Export] %w: password is required", apperrors.ErrInvalidRequest)
	}
	resp, err := c.Call(ctx, http.MethodPost, format.Route(fileID), apimodel.ExportRequest{Password: password})
	if err != nil {
		return nil, fmt.Errorf("[client Export] %s: %w", format, err)
	}
	return resp.Body, nil
}
