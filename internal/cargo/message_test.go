package cargo

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrinter_Message(t *testing.T) {
	old := color.NoColor
	defer func() { color.NoColor = old }()
	SetColor("never")

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Message(Note, "Verifying", "simple v0.1.0 (/src/simple)")
	p.Message(Error, "Verus", "simple: 1 verified, 2 failed, in 0.50s")

	assert.Equal(t,
		"   Verifying simple v0.1.0 (/src/simple)\n"+
			"       Verus simple: 1 verified, 2 failed, in 0.50s\n",
		buf.String())
}

func TestPrinter_MessageColored(t *testing.T) {
	old := color.NoColor
	defer func() { color.NoColor = old }()
	SetColor("always")

	var buf bytes.Buffer
	NewPrinter(&buf).Message(Note, "Verus", "ok")

	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "       Verus")
	assert.Contains(t, buf.String(), " ok\n")
}

func TestPrintError(t *testing.T) {
	old := color.NoColor
	defer func() { color.NoColor = old }()
	SetColor("never")

	var buf bytes.Buffer
	PrintError(&buf, errors.New("failed to call verus: verus failed with exit code 1"))

	assert.Equal(t, "error: failed to call verus: verus failed with exit code 1\n", buf.String())
}
