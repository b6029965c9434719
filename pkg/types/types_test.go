package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWithoutMetadata(t *testing.T) {
	r := &VehicleRecord{ID: 1, Make: "Toyota"}
	assert.False(t, r.HasMetadata())
	assert.Empty(t, r.ImageURL())

	r.Metadata = &VehicleMetadata{Image: "ipfs://QmImage"}
	assert.True(t, r.HasMetadata())
	assert.Equal(t, "ipfs://QmImage", r.ImageURL())
}

func TestMetadataDecodeIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"name": "NSX",
		"description": "First gen.",
		"image": "ipfs://QmImage",
		"attributes": [{"trait_type": "Mileage", "value": 42000}],
		"background_color": "ffffff"
	}`
	var doc VehicleMetadata
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "NSX", doc.Name)
	require.Len(t, doc.Attributes, 1)
	assert.Equal(t, "Mileage", doc.Attributes[0].TraitType)
	assert.EqualValues(t, 42000, doc.Attributes[0].Value)
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.False(t, StatusPending.Terminal())
}
