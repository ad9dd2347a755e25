package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	s := &Store{prefix: "zeus"}
	assert.Equal(t, "zeus:learning", s.learningKey())
	assert.Equal(t, "zeus:trades:BTC-USDT", s.tradesKey("BTC-USDT"))
}
