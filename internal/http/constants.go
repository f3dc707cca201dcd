package httpx

// Header names of the protocol contract. Every request may carry the client's
// protocol version and owner id; every response echoes the server's version.
const (
	// HeaderAPIVersion carries the protocol version on requests and responses.
	HeaderAPIVersion = "X-API-Version"
	// HeaderUserID carries the opaque owner identifier on requests.
	HeaderUserID = "X-User-ID"
)
