package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/registry"
)

func idSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestMatch_CountsIntersection(t *testing.T) {
	sellers := []registry.SellerRecord{
		{SellerID: "123"},
		{SellerID: "456"},
	}

	count := Match(idSet("123", "789"), sellers)
	assert.Equal(t, 1, count)
}

func TestMatch_EmptyRegistry(t *testing.T) {
	assert.Equal(t, 0, Match(idSet("123", "456"), nil))
	assert.Equal(t, 0, Match(idSet("123"), []registry.SellerRecord{}))
}

func TestMatch_EmptyPageIDs(t *testing.T) {
	sellers := []registry.SellerRecord{{SellerID: "123"}}
	assert.Equal(t, 0, Match(nil, sellers))
	assert.Equal(t, 0, Match(idSet(), sellers))
}

func TestMatch_Deterministic(t *testing.T) {
	sellers := []registry.SellerRecord{
		{SellerID: "pub-001"},
		{SellerID: "12345"},
		{SellerID: "67890"},
	}
	ids := idSet("pub-001", "123-45", "99999")

	first := Match(ids, sellers)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Match(ids, sellers))
	}
	assert.Equal(t, 2, first)
}

func TestMatch_NormalizesBothSides(t *testing.T) {
	sellers := []registry.SellerRecord{
		{SellerID: " 1234-5678 "},
		{SellerID: "Pub-ABC"},
	}

	assert.Equal(t, 2, Match(idSet("12345678", "pub-abc"), sellers))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  123  ", "123"},
		{"1234-5678", "12345678"},
		{"12 34", "1234"},
		{"Pub-1234", "pub-1234"},
		{"ABC", "abc"},
		{"", ""},
		{"---", "---"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}
