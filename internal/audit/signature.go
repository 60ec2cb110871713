package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// signaturePayload is the canonical content covered by the tamper
// evidence signature. encoding/json marshals struct fields in
// declaration order and map keys sorted, so the serialization is stable
// for equal logical inputs.
type signaturePayload struct {
	Action        string         `json:"action"`
	Status        string         `json:"status"`
	TargetType    string         `json:"target_type"`
	TargetID      string         `json:"target_id"`
	CorrelationID string         `json:"correlation_id"`
	PrevValues    map[string]any `json:"prev_values"`
	NewValues     map[string]any `json:"new_values"`
}

// Sign computes the HMAC-SHA256 tamper evidence signature over the
// canonical serialization of the entry's identifying fields and
// snapshots. Equal logical inputs always produce byte-identical
// signatures; changing any covered field changes the signature.
func Sign(secret []byte, action Action, status Status, targetType, targetID, correlationID string, prevValues, newValues map[string]any) (string, error) {
	if prevValues == nil {
		prevValues = map[string]any{}
	}
	if newValues == nil {
		newValues = map[string]any{}
	}

	raw, err := json.Marshal(signaturePayload{
		Action:        string(action),
		Status:        string(status),
		TargetType:    targetType,
		TargetID:      targetID,
		CorrelationID: correlationID,
		PrevValues:    prevValues,
		NewValues:     newValues,
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize audit payload: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature for an entry and compares it in
// constant time. No write or read path calls this; it exists for
// operational tooling that audits the journal itself.
func Verify(secret []byte, e *Entry) (bool, error) {
	want, err := Sign(secret, e.Action, e.Status, e.TargetType, e.TargetID, e.CorrelationID, e.PrevValues, e.NewValues)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(want), []byte(e.Signature)), nil
}
