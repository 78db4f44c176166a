// Package relaymsg defines the JSON message types exchanged over the
// relay's WebSocket wire protocol (spec §4.7), shared by the relay server
// (pkg/relay), the relay client used by endpoint daemons (pkg/relayclient),
// and the peer fabric that rides on top of it (pkg/endpoint/peer).
package relaymsg

// Type tags the polymorphic envelope every relay WebSocket frame is sent
// in, so the receiver can dispatch before unmarshaling the full payload.
type Type string

const (
	TypeRegistrationRequest Type = "registration_request"
	TypeResponse            Type = "response"
	TypePeerConnection      Type = "peer_connection"
)

// Envelope is the outer shape of every frame on the relay WebSocket. Exactly
// one of the payload fields is populated, matching Type.
type Envelope struct {
	Type            Type                     `json:"message_type"`
	Registration    *RegistrationRequest     `json:"registration,omitempty"`
	Response        *Response                `json:"response,omitempty"`
	PeerConnection  *PeerConnectionRequest   `json:"peer_connection,omitempty"`
}

// RegistrationRequest is sent client->relay to register (or re-register) a
// client UUID.
type RegistrationRequest struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// Response is the relay's reply to a RegistrationRequest.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DescriptionType names the WebRTC session-description role being
// exchanged.
type DescriptionType string

const (
	DescriptionOffer  DescriptionType = "offer"
	DescriptionAnswer DescriptionType = "answer"
)

// PeerConnectionRequest carries a WebRTC session description (offer or
// answer) between two same-user clients, brokered by the relay. If Error is
// non-empty, this is the relay's error-tagged bounce of an unroutable
// request back to its sender (spec §4.7 step 3).
type PeerConnectionRequest struct {
	SourceUUID      string          `json:"source_uuid"`
	SourceName      string          `json:"source_name"`
	PeerUUID        string          `json:"peer_uuid"`
	DescriptionType DescriptionType `json:"description_type"`
	Description     string          `json:"description"`
	Error           string          `json:"error,omitempty"`
}
