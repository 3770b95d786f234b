package model

// ErrorDetail is the error object of a failure callback.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CallbackPayload is the body POSTed to the callback URL, a tagged
// union over Status: completed carries Result, failed carries Error.
// The signature covers the exact bytes this marshals to, receivers must
// verify over the raw body before parsing it.
type CallbackPayload struct {
	JobID  string       `json:"job_id"`
	Status JobStatus    `json:"status"`
	Result any          `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

func SuccessPayload(jobID string, result any) CallbackPayload {
	return CallbackPayload{
		JobID:  jobID,
		Status: StatusCompleted,
		Result: result,
	}
}

func FailurePayload(jobID string, err error) CallbackPayload {
	detail := FailureDetail(err)
	return CallbackPayload{
		JobID:  jobID,
		Status: StatusFailed,
		Error:  &detail,
	}
}
