package iso7816

// A Transaction is one C-APDU and the R-APDU that answered it. A Trace is the
// ordered list of transactions behind one logical request: T=0 turns a single
// READ into READ + GET RESPONSE when the card answers 61XX, or READ + READ
// when it answers 6CXX.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// Last returns the final transaction of the trace, or nil for an empty trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess reports whether the final transaction succeeded, ignoring
// intermediate 61XX/6CXX steps.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Status returns the final status word, or SW_ERR_UNKNOWN for an empty or
// incomplete trace.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return SW_ERR_UNKNOWN
	}
	return last.Response.Status
}
