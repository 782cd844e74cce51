package session

// NoticeLevel grades a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeSuccess:
		return "success"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a short status message for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

const (
	MessageNoPayload    = "No valid BPMN XML found. Please try again."
	MessageRenderFailed = "Generated BPMN contains errors. Please try again."
	MessageRendered     = "Diagram generated successfully"
	messageTransport    = "Error contacting server: "
)

// TransportNotice is shown when the request or stream fails.
func TransportNotice(err error) Notice {
	return Notice{Level: NoticeError, Message: messageTransport + err.Error()}
}
