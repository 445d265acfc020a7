package fetch

import "fmt"

// TransportError is a request that produced no usable response: a network
// failure, a timeout or a non-2xx status. It aborts the fetch.
type TransportError struct {
	URL        string
	Page       int
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch page %d from %s: http status %d", e.Page, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch page %d from %s: %v", e.Page, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejectionError is a well-formed response whose payload reports a
// non-zero statusCode. Message carries the remote statusMessage.
type RemoteRejectionError struct {
	URL        string
	Page       int
	StatusCode string
	Message    string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("fetch page %d from %s rejected (statusCode %s): %s", e.Page, e.URL, e.StatusCode, e.Message)
}
