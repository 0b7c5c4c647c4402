package codec_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
)

func TestDecodeBundle(t *testing.T) {
	entries, err := codec.DecodeBundle([]byte(`{
		"resourceType": "Bundle",
		"type": "transaction",
		"entry": [
			{"resource": {"resourceType": "Patient", "id": "p-1"}},
			{"fullUrl": "urn:uuid:no-resource"},
			{"resource": {"resourceType": "Observation", "id": "o-1"}}
		]
	}`))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "Patient", entries[0].ResourceType)
	assert.Equal(t, "Observation", entries[1].ResourceType)
	assert.Equal(t, "o-1", entries[1].Resource["id"])
}

func TestDecodeBundleRejectsNonBundle(t *testing.T) {
	var decodeErr *codec.DecodeError

	_, err := codec.DecodeBundle([]byte(`{"resourceType": "Patient"}`))
	require.Error(t, err)
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "resourceType", decodeErr.Field)
}

func TestDecodeBundleEmptyEntryList(t *testing.T) {
	entries, err := codec.DecodeBundle([]byte(`{"resourceType": "Bundle"}`))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecodeBundleMalformedEntries(t *testing.T) {
	var decodeErr *codec.DecodeError

	_, err := codec.DecodeBundle([]byte(`{"resourceType": "Bundle", "entry": "nope"}`))
	require.Error(t, err)
	assert.True(t, errors.As(err, &decodeErr))

	_, err = codec.DecodeBundle([]byte(`{"resourceType": "Bundle", "entry": ["nope"]}`))
	require.Error(t, err)
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "entry", decodeErr.Field)
}
