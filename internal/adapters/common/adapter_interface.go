package common

import "context"

// Adapter delivers a validated dispatch request to the Graph API and reports
// the condensed provider answer. Returned errors wrap ErrTransient or
// ErrPermanent so the worker can decide whether to retry.
type Adapter interface {
	Send(ctx context.Context, msg *ValidatedMessage) (*ProviderResponse, error)
}
