package toolsvc

import (
	"encoding/json"
	"errors"

	"github.com/croftbay/pgscout/internal/inspect"
	"github.com/croftbay/pgscout/internal/pgpool"
	"github.com/croftbay/pgscout/internal/toolreg"
)

// Error kinds carried across the wire. The remote path reconstructs the same
// kind the direct path raises, so a caller cannot tell the strategies apart.
const (
	KindPoolExhausted         = "PoolExhausted"
	KindPoolClosed            = "PoolClosed"
	KindConnectionUnavailable = "ConnectionUnavailable"
	KindTableNotFound         = "TableNotFound"
	KindQueryError            = "QueryError"
	KindUnknownTool           = "UnknownTool"
	KindInvalidArguments      = "InvalidArguments"
	KindSessionNotFound       = "SessionNotFound"
	KindProtocolError         = "ProtocolError"
)

// ErrorKind classifies an error into the wire taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, pgpool.ErrPoolExhausted):
		return KindPoolExhausted
	case errors.Is(err, pgpool.ErrPoolClosed):
		return KindPoolClosed
	case errors.Is(err, pgpool.ErrConnectionUnavailable):
		return KindConnectionUnavailable
	case errors.Is(err, inspect.ErrTableNotFound):
		return KindTableNotFound
	case errors.Is(err, toolreg.ErrUnknownTool):
		return KindUnknownTool
	}
	var qe *inspect.QueryError
	if errors.As(err, &qe) {
		return KindQueryError
	}
	var ae *toolreg.ArgumentError
	if errors.As(err, &ae) {
		return KindInvalidArguments
	}
	return KindProtocolError
}

type errorEnvelope struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Type   string `json:"type"`
}

// EncodeError renders the protocol error shape. The message is the error text
// verbatim; the agent self-corrects from the literal database diagnostic.
func EncodeError(err error) string {
	env := errorEnvelope{Error: err.Error(), Status: "error", Type: ErrorKind(err)}
	b, _ := json.MarshalIndent(env, "", "  ")
	return string(b)
}

// DecodeError parses a protocol error payload back into kind and message.
// The second return is false when the text is not an error envelope.
func DecodeError(text string) (kind, message string, ok bool) {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return "", "", false
	}
	if env.Status != "error" || env.Type == "" {
		return "", "", false
	}
	return env.Type, env.Error, true
}
