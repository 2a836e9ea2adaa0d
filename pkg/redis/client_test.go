package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "forkx:commits.invalidated", NewFromClient(nil, "forkx", zap.NewNop()).Channel(InvalidationChannel))
	assert.Equal(t, "commits.invalidated", NewFromClient(nil, "", zap.NewNop()).Channel(InvalidationChannel))
}
