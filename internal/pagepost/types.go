package pagepost

import (
	"context"
	"encoding/json"
)

// Destination is a page a post can be published to.
type Destination struct {
	ID         string `json:"pageId"`
	Name       string `json:"pageName"`
	Credential string `json:"accessToken"`
}

// Label renders "Name (id)" or the bare id when no name is known.
func (d Destination) Label() string {
	if d.Name == "" {
		return d.ID
	}
	return d.Name + " (" + d.ID + ")"
}

// ImageAsset is a locally selected image.
type ImageAsset struct {
	URI      string
	FileName string
	MIMEType string
}

// Request defines the payload of one publish run.
type Request struct {
	Caption        string
	Images         []ImageAsset
	DestinationIDs []string
}

// Empty reports whether the request carries neither caption nor images.
func (r Request) Empty() bool {
	return r.Caption == "" && len(r.Images) == 0
}

// DestinationSource lists the configured destinations.
type DestinationSource interface {
	List(ctx context.Context) ([]Destination, error)
}

// CallKind tags the outcome of a single remote call.
type CallKind int

const (
	// CallOK means the remote returned an identifier.
	CallOK CallKind = iota
	// CallFailed means the remote answered without an identifier.
	CallFailed
	// CallTransportError means the call did not complete.
	CallTransportError
)

func (k CallKind) String() string {
	switch k {
	case CallOK:
		return "ok"
	case CallFailed:
		return "failed"
	case CallTransportError:
		return "transport"
	default:
		return "unknown"
	}
}

// CallResult is the tagged result of an upload or feed call.
type CallResult struct {
	Kind CallKind
	ID   string
	Raw  json.RawMessage
	Err  error
}

// Succeeded builds an OK result.
func Succeeded(id string, raw json.RawMessage) CallResult {
	return CallResult{Kind: CallOK, ID: id, Raw: raw}
}

// Rejected builds a data-level failure carrying the raw response.
func Rejected(raw json.RawMessage) CallResult {
	return CallResult{Kind: CallFailed, Raw: raw}
}

// TransportFailure builds a transport-level failure.
func TransportFailure(err error) CallResult {
	return CallResult{Kind: CallTransportError, Err: err}
}

// OK reports whether the call produced an identifier.
func (r CallResult) OK() bool { return r.Kind == CallOK }

// Payload returns the raw response, or a synthetic error object for
// transport failures so the attempt can still be recorded.
func (r CallResult) Payload() json.RawMessage {
	if r.Kind != CallTransportError {
		return r.Raw
	}
	msg := "transport error"
	if r.Err != nil {
		msg = r.Err.Error()
	}
	payload, err := json.Marshal(map[string]any{
		"error": map[string]string{
			"message": msg,
			"type":    "transport",
		},
	})
	if err != nil {
		return json.RawMessage(`{"error":{"type":"transport"}}`)
	}
	return payload
}

// Outcome is the feed-creation outcome for one destination.
type Outcome struct {
	DestinationID string
	Succeeded     bool
	Raw           json.RawMessage
	FeedErr       error
	UploadErrors  []error
	LogErr        error
}

// ResultKind classifies a whole run.
type ResultKind int

const (
	AllSucceeded ResultKind = iota
	PartialFailure
	Fatal
)

func (k ResultKind) String() string {
	switch k {
	case AllSucceeded:
		return "all_succeeded"
	case PartialFailure:
		return "partial_failure"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result is the aggregated outcome of a publish run.
type Result struct {
	RunID        string
	Kind         ResultKind
	FailingNames []string
	Message      string
	Outcomes     []Outcome
}
