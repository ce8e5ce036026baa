package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParser(t *testing.T) {
	for _, source := range []string{"", "ibkr", " IBKR "} {
		p, err := GetParser(source)
		require.NoError(t, err, source)
		assert.NotNil(t, p)
	}

	_, err := GetParser("degiro")
	assert.EqualError(t, err, "no parser available for source: degiro")
}
