package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chenyanggao-clone/p115client/api"
)

func TestAcceptContiguousPrefixStopsAtGap(t *testing.T) {
	existing := []api.OSSPart{
		{PartNumber: 1, Size: 100},
		{PartNumber: 2, Size: 100},
		{PartNumber: 4, Size: 100}, // gap at 3
	}
	accepted := acceptContiguousPrefix(existing, 100)
	assert.Len(t, accepted, 2)
	assert.Equal(t, 1, accepted[0].PartNumber)
	assert.Equal(t, 2, accepted[1].PartNumber)
}

func TestAcceptContiguousPrefixStopsAtShortPart(t *testing.T) {
	existing := []api.OSSPart{
		{PartNumber: 1, Size: 100},
		{PartNumber: 2, Size: 50}, // short, likely the last (final) part re-uploaded at wrong size
		{PartNumber: 3, Size: 100},
	}
	accepted := acceptContiguousPrefix(existing, 100)
	assert.Len(t, accepted, 1)
}

func TestAcceptContiguousPrefixEmptyWhenNoneMatch(t *testing.T) {
	accepted := acceptContiguousPrefix(nil, 100)
	assert.Empty(t, accepted)
}

func TestAcceptContiguousPrefixAllAccepted(t *testing.T) {
	existing := []api.OSSPart{
		{PartNumber: 1, Size: 100},
		{PartNumber: 2, Size: 100},
		{PartNumber: 3, Size: 100},
	}
	accepted := acceptContiguousPrefix(existing, 100)
	assert.Len(t, accepted, 3)
}
