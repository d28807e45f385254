package transfer

// GraphCreation is the response to a container create or publish call.
type GraphCreation struct {
	ID string `json:"id"`
}

// GraphContainerStatus is the response to polling a container with
// fields=status_code.
type GraphContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"` // IN_PROGRESS, FINISHED, ERROR
}

// GraphErrorResponse is the Graph API error envelope.
type GraphErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}
