package dispatch

// Envelope is the uniform result of a dispatched call. Exactly one of Data and Error is
// non-null: Data when Success is true, Error otherwise.
type Envelope struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
}

// Ok wraps a successful result.
func Ok(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail wraps an error. The message is the error's string form.
func Fail(err error) Envelope {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Envelope{Success: false, Error: &msg}
}

// ErrorMessage returns the error text, or "" for a successful envelope.
func (e Envelope) ErrorMessage() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}
