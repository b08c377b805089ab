package shared

// Asynq task types
const (
	TypeConfirmOrder     = "order:confirm"
	TypeSweepStaleIntent = "payment:sweep_stale_intents"
)

// Asynq queues
const (
	QueuePayment = "payment"
	QueueOrder   = "order"
)
