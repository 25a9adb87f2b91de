package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortDefaultsToDev(t *testing.T) {
	assert.Equal(t, "dev", Short())
}

func TestFullCarriesCommitAndDate(t *testing.T) {
	full := Full()
	assert.Contains(t, full, Short())
	assert.Contains(t, full, "commit")
	assert.Contains(t, full, "built")
}
