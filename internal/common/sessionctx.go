package common

import "context"

type ctxKey string

const dealerKey ctxKey = "session/dealer"

// Dealer identifies the authenticated dealer on a request context.
type Dealer struct {
	ID   string
	Code string
	Name string
}

// WithDealer stores the authenticated dealer on the provided context.
func WithDealer(ctx context.Context, d Dealer) context.Context {
	return context.WithValue(ctx, dealerKey, d)
}

// DealerFrom extracts the authenticated dealer from the context if present.
func DealerFrom(ctx context.Context) (Dealer, bool) {
	v := ctx.Value(dealerKey)
	if v == nil {
		return Dealer{}, false
	}
	d, ok := v.(Dealer)
	return d, ok
}
