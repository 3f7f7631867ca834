package services_test

import (
	"testing"

	"affiliate-engine/services"

	"github.com/stretchr/testify/assert"
)

func TestCalculateAffiliateLevel(t *testing.T) {
	cases := map[int]int{
		-3: 1, 0: 1, 1: 1, 2: 2, 3: 3, 4: 4, 5: 5, 6: 5, 10: 5, 99: 5,
	}
	for profileLevel, want := range cases {
		assert.Equal(t, want, services.CalculateAffiliateLevel(profileLevel), "profile level %d", profileLevel)
	}
}
