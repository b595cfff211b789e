//go:build verusbundle

package toolchain

import _ "embed"

// embeddedBundle is the verus release packaged next to this file as
// verus.tar.zst before building with -tags verusbundle.
//
//go:embed verus.tar.zst
var embeddedBundle []byte
