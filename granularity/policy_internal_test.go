package granularity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicies_CoverEveryType(t *testing.T) {
	for _, level := range Types {
		p := policies[level]
		assert.NotNil(t, p.identifier, level.String())
		assert.NotNil(t, p.sameLabel, level.String())
		assert.NotNil(t, p.label, level.String())
	}
	assert.Len(t, Types, numTypes)
}
