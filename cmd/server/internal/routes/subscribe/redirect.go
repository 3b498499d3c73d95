package subscribe

import "slices"

const alreadySubscribedQuery = "?status=already-subscribed"

// RedirectPolicy only lets a caller pick among known relative paths.
type RedirectPolicy struct {
	Default string
	Allowed []string
}

// Sanitize returns target when it exactly matches an allowed path, otherwise the default.
func (p RedirectPolicy) Sanitize(target string) string {
	if slices.Contains(p.Allowed, target) {
		return target
	}
	return p.Default
}
