package models

import "errors"

// Domain failures. Storage and service layers return these (wrapped);
// callers match with errors.Is.
var (
	ErrInvalidPlate           = errors.New("invalid plate")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidPatch           = errors.New("invalid patch")
	ErrEmptySignatureImage    = errors.New("signature image is empty")
	ErrInvalidStatusForCreate = errors.New("status not allowed at create")
	ErrDuplicateOpenService   = errors.New("vehicle already has an open service")
	ErrServiceNotFound        = errors.New("service not found")
	ErrServiceClosed          = errors.New("service already delivered")
	ErrServiceNotDelivered    = errors.New("service not delivered yet")
	ErrAlreadySigned          = errors.New("signature already attached")
	ErrNoCurrentService       = errors.New("no current service for plate")
	ErrUnauthenticated        = errors.New("not authenticated")
	ErrStoreUnavailable       = errors.New("store unavailable")
)
