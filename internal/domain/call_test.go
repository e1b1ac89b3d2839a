package domain_test

import (
	"strings"
	"testing"

	"github.com/dkeye/callrelay/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewCallID_CarriesBothParties(t *testing.T) {
	id := domain.NewCallID("alice", "bob")
	assert.True(t, strings.HasPrefix(id.String(), "alice-bob-"))
}

func TestNewCallID_Unique(t *testing.T) {
	seen := make(map[domain.CallID]struct{}, 1000)
	for range 1000 {
		id := domain.NewCallID("alice", "bob")
		_, dup := seen[id]
		assert.False(t, dup, "duplicate call id %s", id)
		seen[id] = struct{}{}
	}
}
