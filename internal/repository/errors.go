package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrAlreadySent is returned when a scheduled message is cancelled or
	// edited after the scheduler already fired it.
	ErrAlreadySent = errors.New("scheduled message already sent")

	// ErrPinLimit is returned when pinning would exceed the per-chat cap.
	ErrPinLimit = errors.New("pinned message limit reached")
)
