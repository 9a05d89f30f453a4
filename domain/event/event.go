// Package event defines the wire contract of the relay: one JSON envelope
// per frame, carrying an event name and a payload. Binary material (public
// keys, KEM ciphertexts, encrypted messages) travels as base64 strings and
// is never inspected by the server.
package event

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// Inbound event names, as emitted by clients.
const (
	RegisterUser       = "register_user"
	RequestPubKey      = "request_pubkey"
	PubKey             = "pubkey"
	SendKemCiphertext  = "send_kem_ciphertext"
	SendMessage        = "send_message"
	CreateGroup        = "create_group"
	DistributeGroupKey = "distribute_group_key"
	SendGroupMessage   = "send_group_message"
	GetMyGroups        = "get_my_groups"
)

// Envelope is the inbound wire frame. Data stays raw until the router
// knows which payload type the event name selects.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RegisterUserData struct {
	Name string `json:"name" validate:"required"`
}

type RequestPubKeyData struct {
	Username string `json:"username" validate:"required"`
}

type PubKeyData struct {
	Name   string `json:"name" validate:"required"`
	PubKey string `json:"pubkey" validate:"required"`
}

type SendKemCiphertextData struct {
	To         string `json:"to" validate:"required"`
	Ciphertext string `json:"ciphertext" validate:"required"`
}

type SendMessageData struct {
	To            string `json:"to" validate:"required"`
	Base64Message string `json:"base64Message" validate:"required"`
}

type CreateGroupData struct {
	Name    string   `json:"name" validate:"required"`
	Members []string `json:"members"`
}

type DistributeGroupKeyData struct {
	GroupID string            `json:"group_id" validate:"required"`
	Keys    map[string]string `json:"keys" validate:"required"`
}

type SendGroupMessageData struct {
	GroupID       string `json:"group_id" validate:"required"`
	Base64Message string `json:"base64Message" validate:"required"`
}

var validate = validator.New()

// Decode unmarshals an envelope payload into dst and checks its validate
// tags. A failure means the frame is malformed and must be dropped, never
// that the connection should die.
func Decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
