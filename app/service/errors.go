package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotApproved  = errors.New("payment is not approved")
	ErrProviderUnsupported = errors.New("provider is not supported")
	ErrNetworkUnavailable  = errors.New("network is unavailable")
	ErrRemoteSyncFailed    = errors.New("remote store update failed")
	ErrInvalidInterval     = errors.New("job interval must be positive")
)
