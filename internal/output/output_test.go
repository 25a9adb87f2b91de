package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusWithAndWithoutPrefix(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	o.Status("", "plain line")
	o.Status("serve", "listening")

	assert.Equal(t, "plain line\nserve listening\n", buf.String())
}

func TestStatusfFormats(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	o.Statusf("", "%d results in %dms", 7, 42)

	assert.Equal(t, "7 results in 42ms\n", buf.String())
}

func TestNonTTYOutputHasNoANSICodes(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	o.Success("done")
	o.Warningf("slow feed %s", "example.org")
	o.Errorf("gone wrong")

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "✓ done")
	assert.Contains(t, out, "! slow feed example.org")
	assert.Contains(t, out, "✗ gone wrong")
}
