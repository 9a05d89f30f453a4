package event

// Outbound event names, as consumed by clients.
const (
	RegistrationConfirmed = "registration_confirmed"
	RegistrationError     = "registration_error"
	UserList              = "user_list"
	UserDisconnected      = "user_disconnected"
	PubKeyResponse        = "pubkey_response"
	PubKeyError           = "pubkey_error"
	PeerPubKeys           = "peer_pubkeys"
	RecvKemCiphertext     = "recv_kem_ciphertext"
	RecvMessage           = "recv_message"
	GroupCreated          = "group_created"
	GroupInvitation       = "group_invitation"
	GroupKey              = "group_key"
	RecvGroupMessage      = "recv_group_message"
	MyGroups              = "my_groups"
	GroupError            = "group_error"
)

// Outbound is a frame on its way to one connection (or all of them).
// Data is marshaled by the transport at write time.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type RegistrationConfirmedData struct {
	Username string `json:"username"`
}

// ErrorData is the payload of every error event; errors only ever go back
// to the connection that caused them.
type ErrorData struct {
	Message string `json:"message"`
}

type PubKeyResponseData struct {
	Username  string `json:"username"`
	PubKeyB64 string `json:"pubkeyB64"`
}

type RecvKemCiphertextData struct {
	From       string `json:"from"`
	Ciphertext string `json:"ciphertext"`
}

type RecvMessageData struct {
	From          string `json:"from"`
	Base64Message string `json:"base64Message"`
}

// GroupDescriptor is the client-facing view of a group, used for creation
// confirmations, invitations and my_groups listings.
type GroupDescriptor struct {
	GroupID   string   `json:"group_id"`
	Name      string   `json:"name"`
	Admin     string   `json:"admin"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

type GroupKeyData struct {
	GroupID      string `json:"group_id"`
	From         string `json:"from"`
	EncryptedKey string `json:"encryptedKey"`
}

type RecvGroupMessageData struct {
	GroupID       string `json:"group_id"`
	From          string `json:"from"`
	Base64Message string `json:"base64Message"`
}

type GroupErrorData struct {
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}
