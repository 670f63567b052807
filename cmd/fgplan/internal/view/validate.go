package view

import (
	"encoding/json"
	"time"
)

// ValidateResult is the outcome of validating a set of files.
type ValidateResult struct {
	FileCount int
	Errors    []FileError
}

// FileError is a validation failure in one file.
type FileError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// HasErrors reports whether any file failed.
func (r ValidateResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// RenderValidate writes r in the given format.
func RenderValidate(vt ViewType, s *Stream, r ValidateResult) {
	if vt == ViewJSON {
		out := struct {
			Type      string      `json:"type"`
			Status    string      `json:"status"`
			Timestamp time.Time   `json:"timestamp"`
			Files     int         `json:"files"`
			Errors    []FileError `json:"errors,omitempty"`
		}{
			Type:      "validate",
			Status:    "success",
			Timestamp: time.Now(),
			Files:     r.FileCount,
			Errors:    r.Errors,
		}
		if r.HasErrors() {
			out.Status = "error"
		}
		if data, err := json.Marshal(out); err == nil {
			s.Println(string(data))
		}
		return
	}

	if r.HasErrors() {
		for _, e := range r.Errors {
			s.Println(failure.Sprint("Error!"), e.File+":", e.Message)
		}
		return
	}
	s.Println(highlight.Sprint("Valid!"), plural(r.FileCount, "file"), "checked, no errors found.")
}
