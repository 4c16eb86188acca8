package failure

// Message keys, one per Kind.
const (
	MessageKeyTLS         = "thread_load_failed_ssl"
	MessageKeyNetwork     = "thread_load_failed_network"
	MessageKeyNotFound    = "thread_load_failed_not_found"
	MessageKeyServerError = "thread_load_failed_server"
	MessageKeyParse       = "thread_load_failed_parsing"
)

// DefaultMessages holds the English text for each message key.
var DefaultMessages = map[string]string{
	MessageKeyTLS:         "Error loading: SSL error",
	MessageKeyNetwork:     "Error loading: network error",
	MessageKeyNotFound:    "404: not found",
	MessageKeyServerError: "Error loading: server error",
	MessageKeyParse:       "Error loading: parsing error",
}

// MessageKey returns the message key for the kind.
func (k Kind) MessageKey() string {
	switch k {
	case KindTLS:
		return MessageKeyTLS
	case KindNetwork:
		return MessageKeyNetwork
	case KindNotFound:
		return MessageKeyNotFound
	case KindServerError:
		return MessageKeyServerError
	default:
		return MessageKeyParse
	}
}

// Message returns the default text for the kind.
func (k Kind) Message() string {
	return DefaultMessages[k.MessageKey()]
}

// Localize returns the text for the kind from messages, falling back to
// DefaultMessages when the key is missing.
func (k Kind) Localize(messages map[string]string) string {
	if msg, ok := messages[k.MessageKey()]; ok {
		return msg
	}
	return k.Message()
}
