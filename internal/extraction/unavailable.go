package extraction

import "context"

const unavailableMessage = "Document extraction is not available right now. Please try again later."

// UnavailableGateway answers every call with a failed result. It backs
// deployments without an extraction provider.
type UnavailableGateway struct{}

func (UnavailableGateway) Extract(context.Context, Document) (*RawResult, error) {
	return &RawResult{Success: false, UserMessage: unavailableMessage}, nil
}
