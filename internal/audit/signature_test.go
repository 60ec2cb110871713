package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("audit-test-secret")

func signFixture(t *testing.T, mutate func(*Entry)) string {
	t.Helper()
	e := &Entry{
		Action:        ActionDeleteSoft,
		Status:        StatusSuccess,
		TargetType:    "Applicant",
		TargetID:      "2310000123",
		CorrelationID: "c9f1",
		PrevValues:    map[string]any{"full_name": "Nguyen Van A", "status": "saved"},
		NewValues:     map[string]any{"deleted_reason": "duplicate"},
	}
	if mutate != nil {
		mutate(e)
	}
	sig, err := Sign(testSecret, e.Action, e.Status, e.TargetType, e.TargetID, e.CorrelationID, e.PrevValues, e.NewValues)
	require.NoError(t, err)
	return sig
}

func TestSignDeterminism(t *testing.T) {
	first := signFixture(t, nil)
	second := signFixture(t, nil)
	assert.Equal(t, first, second, "equal logical inputs must produce byte-identical signatures")
}

func TestSignIgnoresMapInsertionOrder(t *testing.T) {
	base := signFixture(t, nil)
	reordered := signFixture(t, func(e *Entry) {
		e.PrevValues = map[string]any{"status": "saved", "full_name": "Nguyen Van A"}
	})
	assert.Equal(t, base, reordered, "snapshot maps are order-independent")
}

func TestSignSensitivity(t *testing.T) {
	base := signFixture(t, nil)

	mutations := map[string]func(*Entry){
		"action":         func(e *Entry) { e.Action = ActionDeleteHard },
		"status":         func(e *Entry) { e.Status = StatusFailure },
		"target type":    func(e *Entry) { e.TargetType = "User" },
		"target id":      func(e *Entry) { e.TargetID = "2310000124" },
		"correlation id": func(e *Entry) { e.CorrelationID = "other" },
		"prev values":    func(e *Entry) { e.PrevValues["status"] = "printed" },
		"new values":     func(e *Entry) { e.NewValues["deleted_reason"] = "withdrawn" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, base, signFixture(t, mutate), "changing %s must change the signature", name)
		})
	}
}

func TestSignSecretMatters(t *testing.T) {
	sig, err := Sign([]byte("secret-a"), ActionCreate, StatusSuccess, "Applicant", "1", "", nil, nil)
	require.NoError(t, err)
	other, err := Sign([]byte("secret-b"), ActionCreate, StatusSuccess, "Applicant", "1", "", nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, sig, other)
}

func TestVerify(t *testing.T) {
	e := &Entry{
		Action:     ActionCreate,
		Status:     StatusSuccess,
		TargetType: "Applicant",
		TargetID:   "2310000123",
		PrevValues: map[string]any{},
		NewValues:  map[string]any{"full_name": "Nguyen Van A"},
	}

	sig, err := Sign(testSecret, e.Action, e.Status, e.TargetType, e.TargetID, e.CorrelationID, e.PrevValues, e.NewValues)
	require.NoError(t, err)
	e.Signature = sig

	ok, err := Verify(testSecret, e)
	require.NoError(t, err)
	assert.True(t, ok)

	e.NewValues["full_name"] = "tampered"
	ok, err = Verify(testSecret, e)
	require.NoError(t, err)
	assert.False(t, ok, "a tampered entry must fail verification")
}
