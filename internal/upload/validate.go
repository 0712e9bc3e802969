// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"fmt"
	"slices"
	"strings"
)

// Size ceilings.
const (
	MaxPDFSize  int64 = 50 * 1024 * 1024
	MaxFileSize int64 = 10 * 1024 * 1024
)

// AllowedTypes is the content-type allow-list shared by the client check and
// the blob server's token issuance.
var AllowedTypes = []string{
	"application/pdf",
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
}

var typeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
}

// IsAllowedType reports whether contentType is on the allow-list. Case and
// parameters are ignored.
func IsAllowedType(contentType string) bool {
	return slices.Contains(AllowedTypes, baseMediaType(contentType))
}

// Supported reports whether f's type or extension is accepted.
func Supported(f File) bool {
	if IsAllowedType(f.Type) {
		return true
	}
	_, ok := typeByExtension[f.Ext()]
	return ok
}

// MaxSize returns the ceiling for f.
func MaxSize(f File) int64 {
	if strings.Contains(strings.ToLower(f.Type), "pdf") || f.Ext() == ".pdf" {
		return MaxPDFSize
	}
	return MaxFileSize
}

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// Reason classifies a validation failure.
type Reason int

const (
	ReasonUnsupportedType Reason = iota
	ReasonTooLarge
)

// ValidationError explains why one file was rejected before upload.
type ValidationError struct {
	Name   string
	Reason Reason
	Max    int64
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonTooLarge:
		return fmt.Sprintf("%s: File too large. Maximum size is %dMB.", e.Name, e.Max/(1024*1024))
	default:
		return fmt.Sprintf("%s: Unsupported file type. Please upload PDF, CSV, Excel (.xlsx, .xls), or text files.", e.Name)
	}
}

// Validate checks type first, then size.
func Validate(f File) error {
	if !Supported(f) {
		return &ValidationError{Name: f.Name, Reason: ReasonUnsupportedType}
	}
	if max := MaxSize(f); f.Size > max {
		return &ValidationError{Name: f.Name, Reason: ReasonTooLarge, Max: max}
	}
	return nil
}

// Partition splits files into valid ones and per-file rejections, keeping
// input order in both.
func Partition(files []File) ([]File, []*ValidationError) {
	var (
		valid    []File
		rejected []*ValidationError
	)
	for _, f := range files {
		if err := Validate(f); err != nil {
			rejected = append(rejected, err.(*ValidationError))
			continue
		}
		valid = append(valid, f)
	}
	return valid, rejected
}
