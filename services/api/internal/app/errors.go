package app

import "errors"

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrScanEventNotFound = errors.New("scan event not found")

	// ErrForbidden is used by item, QR and upload endpoints. Analytics
	// reports foreign items as ErrItemNotFound instead.
	ErrForbidden = errors.New("you do not have access to this item")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials covers unknown email, wrong password and
	// accounts created through another provider alike.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrEmailExists        = errors.New("User with this email already exists")

	ErrSlugConflict = errors.New("slug already in use")

	ErrInvalidInput = errors.New("invalid input")
)
