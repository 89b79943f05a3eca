package model

// JobKind names a deferred transaction job.
type JobKind string

const (
	// JobExpirePayment moves an unpaid WAITING_PAYMENT transaction to EXPIRED.
	JobExpirePayment JobKind = "expire"
	// JobAutoCancel moves an unreviewed WAITING_CONFIRMATION transaction to CANCELLED.
	JobAutoCancel JobKind = "cancel"
)

// JobKinds lists every kind the poller drains.
var JobKinds = []JobKind{JobExpirePayment, JobAutoCancel}
