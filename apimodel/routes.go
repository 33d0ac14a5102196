package apimodel

import "fmt"

// Endpoint path constants, relative to the API base URL.
// The service requires the trailing slash on every route.
const (
	// Auth Routes - unauthenticated
	RouteLogin        = "login/"
	RouteSignup       = "signup/"
	RouteTokenRefresh = "token/refresh/"

	// Auth Routes - authenticated
	RouteLogout = "logout/"

	// Profile Routes
	RouteProfile        = "profile/"
	RouteChangePassword = "profile/password/"

	// Dataset Routes
	RouteUpload  = "upload/"
	RouteHistory = "history/"
	RouteCompare = "compare/"
)

func RouteAnalysis(fileID int64) string {
	return fmt.Sprintf("analysis/%d/", fileID)
}

func RouteDelete(fileID int64) string {
	return fmt.Sprintf("delete/%d/", fileID)
}

func RouteExportPDF(fileID int64) string {
	return fmt.Sprintf("export/pdf/%d/", fileID)
}

func RouteExportExcel(fileID int64) string {
	return fmt.Sprintf("export/excel/%d/", fileID)
}
