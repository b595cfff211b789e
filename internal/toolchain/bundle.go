//go:build !verusbundle

package toolchain

// embeddedBundle is empty unless vargo is built with -tags verusbundle.
var embeddedBundle []byte
