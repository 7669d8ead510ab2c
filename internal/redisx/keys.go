package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{user_id}:{key} -> order_id | "pending"
	KeyIdemOrderCreate = "idem:order:create:%d:%s"

	// Cache order: order:{order_id} -> JSON snapshot order lengkap
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
