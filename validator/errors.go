package validator

// Code enumerates the validator's result codes, per spec §6's error-code
// return convention for the chain facade's callbacks.
type Code int

const (
	Success Code = iota
	ErrServiceStopped
	ErrBlockTooBig
	ErrBadProofOfWork
	ErrTimeTooNew
	ErrFirstTxNotCoinbase
	ErrMultipleCoinbases
	ErrDuplicateTx
	ErrTooManySigOps
	ErrBadMerkleRoot
	ErrNoTransactions
	ErrNoTxInputs
	ErrNoTxOutputs
	ErrBadTxOutValue
	ErrDuplicateTxInputs
	ErrBadTxInput
	ErrBadCoinbaseScriptLen
	ErrBadRetarget
	ErrTimeTooOld
	ErrNotFinalTx
	ErrCheckpointMismatch
	ErrBadBlockVersion
	ErrBadCoinbaseHeight
	ErrDuplicateOrSpent
	ErrMissingTxOut
	ErrImmatureSpend
	ErrBadFees
	ErrBadCoinbaseValue
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case ErrServiceStopped:
		return "service_stopped"
	case ErrBlockTooBig:
		return "size_limits"
	case ErrBadProofOfWork:
		return "proof_of_work"
	case ErrTimeTooNew:
		return "futuristic_timestamp"
	case ErrFirstTxNotCoinbase:
		return "first_not_coinbase"
	case ErrMultipleCoinbases:
		return "extra_coinbases"
	case ErrDuplicateTx:
		return "duplicate_tx"
	case ErrTooManySigOps:
		return "too_many_sigs"
	case ErrBadMerkleRoot:
		return "merkle_mismatch"
	case ErrNoTransactions:
		return "no_transactions"
	case ErrNoTxInputs:
		return "no_tx_inputs"
	case ErrNoTxOutputs:
		return "no_tx_outputs"
	case ErrBadTxOutValue:
		return "bad_tx_out_value"
	case ErrDuplicateTxInputs:
		return "duplicate_tx_inputs"
	case ErrBadTxInput:
		return "bad_tx_input"
	case ErrBadCoinbaseScriptLen:
		return "bad_coinbase_script_len"
	case ErrBadRetarget:
		return "bad_retarget"
	case ErrTimeTooOld:
		return "timestamp_too_early"
	case ErrNotFinalTx:
		return "non_final_transaction"
	case ErrCheckpointMismatch:
		return "checkpoints_failed"
	case ErrBadBlockVersion:
		return "old_version_block"
	case ErrBadCoinbaseHeight:
		return "coinbase_height_mismatch"
	case ErrDuplicateOrSpent:
		return "duplicate_or_spent"
	case ErrMissingTxOut:
		return "missing_tx_out"
	case ErrImmatureSpend:
		return "immature_spend"
	case ErrBadFees:
		return "fees_out_of_range"
	case ErrBadCoinbaseValue:
		return "bad_coinbase_value"
	default:
		return "unknown"
	}
}

// RuleError pairs a Code with a human-readable description, the way the
// teacher's ruleError helper wraps its own error codes.
type RuleError struct {
	Code        Code
	Description string
}

func (e RuleError) Error() string {
	return e.Description
}

func ruleError(c Code, desc string) error {
	return RuleError{Code: c, Description: desc}
}
