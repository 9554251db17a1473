package ingest

import (
	"mime"
	"path/filepath"
	"strings"
)

var allowedMIMETypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel":                                          true,
	"text/csv":                                                          true,
}

var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// AcceptsUpload reports whether an upload's declared type is a spreadsheet or
// CSV. Generic binary uploads are judged by their file extension.
func AcceptsUpload(contentType, filename string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if allowedMIMETypes[mediaType] {
		return true
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	}
	return false
}
