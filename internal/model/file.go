package model

import (
	"errors"
	"fmt"
)

// FileRecord is one entry of the account file listing
type FileRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Views        int64  `json:"views,omitempty"`
	DateUpload   string `json:"date_upload,omitempty"`
	DateLastView string `json:"date_last_view"`
}

// FileList is the body of the account file listing
type FileList struct {
	Files *[]FileRecord `json:"files"`
}

// ErrMissingField is returned when the listing lacks a required field
var ErrMissingField = errors.New("missing field")

// Records validates the listing and returns its records in listing order
func (l *FileList) Records() ([]FileRecord, error) {
	if l.Files == nil {
		return nil, fmt.Errorf("%w: files", ErrMissingField)
	}

	for i, rec := range *l.Files {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: files[%d].id", ErrMissingField, i)
		}
	}

	return *l.Files, nil
}

// ViewResult is the body returned by the view confirmation endpoint
type ViewResult struct {
	Success *bool  `json:"success"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Succeeded reports whether the host confirmed the view
func (r *ViewResult) Succeeded() bool {
	return r.Success != nil && *r.Success
}
