package dataset

import "errors"

var (
	// ErrWeakPassword is returned when the encryption password is shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("dataset: password must be at least 8 characters long")

	// ErrInputMissing is returned when an input CSV does not exist.
	ErrInputMissing = errors.New("dataset: input file not found")

	// ErrMalformedCSV is returned when a CSV cannot be parsed or lacks a required column.
	ErrMalformedCSV = errors.New("dataset: malformed csv")

	// ErrValidation is returned when converted data does not match its source.
	ErrValidation = errors.New("dataset: validation failed")
)
