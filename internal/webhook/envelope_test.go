package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCanonicalEnvelope(t *testing.T) {
	body := []byte(`{
		"event": "transaction.approved",
		"data": {
			"transaction": {
				"id": "t1",
				"status": "APPROVED",
				"referenceUUID": "r1",
				"message": "ok"
			}
		}
	}`)

	event, tx, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "transaction.approved", event)
	assert.Equal(t, Transaction{ID: "t1", Status: "APPROVED", ReferenceUUID: "r1", Message: "ok"}, tx)
}

func TestParseLegacyFlatShape(t *testing.T) {
	body := []byte(`{"id":"t1","status":"APPROVED","referenceUUID":"r1"}`)

	event, tx, err := Parse(body)
	require.NoError(t, err)
	assert.Empty(t, event, "legacy shape carries no event name")
	assert.Equal(t, Transaction{ID: "t1", Status: "APPROVED", ReferenceUUID: "r1"}, tx)
}

func TestParseBothShapesYieldSameTransaction(t *testing.T) {
	canonical := []byte(`{"event":"transaction.declined","data":{"transaction":{"id":"t2","status":"DECLINED","referenceUUID":"r2"}}}`)
	legacy := []byte(`{"id":"t2","status":"DECLINED","referenceUUID":"r2"}`)

	_, txA, err := Parse(canonical)
	require.NoError(t, err)
	_, txB, err := Parse(legacy)
	require.NoError(t, err)
	assert.Equal(t, txA, txB)
}

func TestParseRejectsEmptyBody(t *testing.T) {
	for _, body := range [][]byte{nil, {}, []byte("   \n")} {
		_, _, err := Parse(body)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, _, err := Parse([]byte(`{"id": "t1"`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"id":"t1","status":"APPROVED"}`,
		`{"id":"t1","referenceUUID":"r1"}`,
		`{"status":"APPROVED","referenceUUID":"r1"}`,
		`{"event":"transaction.approved","data":{"transaction":{"id":"t1"}}}`,
		`{}`,
	}
	for _, c := range cases {
		_, _, err := Parse([]byte(c))
		assert.ErrorIs(t, err, ErrValidation, c)
	}
}

func TestParseCanonicalWithEventButInvalidTransactionFallsThrough(t *testing.T) {
	// An event wrapper around an incomplete transaction is invalid even if a
	// legacy parse of the top level would also fail.
	_, _, err := Parse([]byte(`{"event":"transaction.approved","data":{"transaction":{"status":"APPROVED"}}}`))
	assert.ErrorIs(t, err, ErrValidation)
}
