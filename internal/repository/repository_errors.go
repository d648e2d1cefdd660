package repository

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrShortLinkNotFound = errors.New("short link not found")

	// ErrOrderNumberTaken and ErrTokenTaken surface unique-constraint races;
	// callers retry a bounded number of times before giving up.
	ErrOrderNumberTaken = errors.New("order number already taken")
	ErrTokenTaken       = errors.New("token already taken")

	// ErrStatusConflict means a compare-and-set on order status matched no
	// row because the order moved underneath the caller.
	ErrStatusConflict = errors.New("order status changed concurrently")
)
