package ingest

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatReport = `{
	"max_observed_block_height": 359605,
	"commit_hash": "abcdef12",
	"chain_id": "mainnet",
	"peer_id": "12D3KooWPeer",
	"peer_count": 42,
	"timestamp": "2025-06-01T12:00:00Z",
	"block_producer_public_key": "B62qBP1"
}`

func TestDecode_Shapes(t *testing.T) {
	wrapped := `{"data": ` + flatReport + `}`
	pushFlat := `{"message": {"data": "` + base64.StdEncoding.EncodeToString([]byte(flatReport)) + `", "messageId": "1"}, "subscription": "projects/x/subscriptions/y"}`
	pushWrapped := `{"message": {"data": "` + base64.StdEncoding.EncodeToString([]byte(wrapped)) + `"}}`

	tests := []struct {
		name string
		body string
	}{
		{"flat", flatReport},
		{"data wrapped", wrapped},
		{"push envelope with flat payload", pushFlat},
		{"push envelope with wrapped payload", pushWrapped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, "12D3KooWPeer", sub.PeerID)
			assert.Equal(t, "abcdef12", sub.CommitHash)
			assert.Equal(t, "mainnet", sub.ChainID)
			require.NotNil(t, sub.MaxObservedBlockHeight)
			assert.Equal(t, uint64(359605), *sub.MaxObservedBlockHeight)
			require.NotNil(t, sub.PeerCount)
			assert.Equal(t, uint64(42), *sub.PeerCount)
			require.NotNil(t, sub.BlockProducerPublicKey)
			assert.Equal(t, "B62qBP1", *sub.BlockProducerPublicKey)
		})
	}
}

func TestDecode_URLSafeBase64(t *testing.T) {
	body := `{"message": {"data": "` + base64.URLEncoding.EncodeToString([]byte(flatReport)) + `"}}`

	sub, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "12D3KooWPeer", sub.PeerID)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "peer_id=abc"},
		{"array", `[1,2,3]`},
		{"bad base64", `{"message": {"data": "%%%"}}`},
		{"empty message data", `{"message": {"data": ""}}`},
		{"negative height", `{"max_observed_block_height": -1, "peer_id": "x"}`},
		{"base64 of garbage", `{"message": {"data": "` + base64.StdEncoding.EncodeToString([]byte("nope")) + `"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.ErrorIs(t, err, ErrInvalidSubmission)
		})
	}
}
