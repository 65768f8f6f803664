package domain

import "errors"

var (
	ErrInstanceNotFound = errors.New("workflow instance not found")
	ErrResourceNotFound = errors.New("resource group not found")
	ErrNoExpirationTag  = errors.New("resource group has no expiration tag")
)
