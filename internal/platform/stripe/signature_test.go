package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1700000000, 0)
	header := SignPayload(payload, testSecret, now)
	require.NoError(t, VerifySignature(payload, header, testSecret, now, 5*time.Minute))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1700000000, 0)
	header := SignPayload(payload, "whsec_other", now)
	err := VerifySignature(payload, header, testSecret, now, 5*time.Minute)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	header := SignPayload([]byte(`{"amount":100}`), testSecret, now)
	err := VerifySignature([]byte(`{"amount":999}`), header, testSecret, now, 5*time.Minute)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifySignature_TimestampSkew(t *testing.T) {
	payload := []byte(`{}`)
	signed := time.Unix(1700000000, 0)
	header := SignPayload(payload, testSecret, signed)
	err := VerifySignature(payload, header, testSecret, signed.Add(10*time.Minute), 5*time.Minute)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifySignature_MissingHeader(t *testing.T) {
	err := VerifySignature([]byte(`{}`), "", testSecret, time.Now(), 5*time.Minute)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestParseEvent(t *testing.T) {
	body := []byte(`{"id":"evt_9","type":"payment_intent.succeeded","created":1000,"data":{"object":{"id":"pi_1"}}}`)
	ev, err := ParseEvent(body)
	require.NoError(t, err)
	require.Equal(t, "evt_9", ev.ID)
	require.Equal(t, "payment_intent", ev.ObjectFamily())
	require.Equal(t, int64(1000), ev.Created)
	require.JSONEq(t, string(body), string(ev.Raw))
}

func TestParseEvent_RejectsBadID(t *testing.T) {
	_, err := ParseEvent([]byte(`{"id":"pi_9","type":"x"}`))
	require.Error(t, err)
	_, err = ParseEvent([]byte(`not json`))
	require.Error(t, err)
}
