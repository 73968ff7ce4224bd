package clients

// Outcome labels attached to call metrics and receipts.
const (
	OutcomeOK                = "ok"
	OutcomeBuildFailed       = "build_failed"
	OutcomeTransportFailed   = "transport_failed"
	OutcomeSimulationFailed  = "simulation_failed"
	OutcomeDecodeFailed      = "decode_failed"
	OutcomeSignerRejected    = "signer_rejected"
	OutcomeSendRejected      = "send_rejected"
	OutcomeTransactionFailed = "transaction_failed"
	OutcomeTimedOut          = "confirmation_timed_out"
)
