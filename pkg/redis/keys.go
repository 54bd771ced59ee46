package redis

import "strings"

const (
	webhookPrefix          = "webhook"
	codActivePrefix        = "cod:active"
	codCancellationsPrefix = "cod:cancellations"
	cartPrefix             = "cart"
	idempotencyPrefix      = "idempotency"
	lockPrefix             = "lock"
)

// WebhookKey is the dedup sentinel for a processed gateway event.
func WebhookKey(eventID string) string {
	return buildKey(webhookPrefix, eventID)
}

// CODActiveKey holds the number of open cash-on-delivery orders for a user.
func CODActiveKey(userID string) string {
	return buildKey(codActivePrefix, userID)
}

// CODCancellationsKey holds the number of cancelled cash-on-delivery orders for a user.
func CODCancellationsKey(userID string) string {
	return buildKey(codCancellationsPrefix, userID)
}

// CartKey is the cached cart view for a user.
func CartKey(userID string) string {
	return buildKey(cartPrefix, userID)
}

// IdempotencyKey namespaces request replay records.
func IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

// LockKey names a worker lock.
func LockKey(name, env string) string {
	if env == "" {
		env = "local"
	}
	return buildKey(lockPrefix, name, env)
}

func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
