// SPDX-License-Identifier: MPL-2.0

// cfs-entrypoint is the container entry command for the cfs-config-util
// image. It prepares the TLS trust store and then replaces itself with
// cfs-config-util, forwarding its arguments verbatim. Because the handoff
// is a process replacement, the container's exit code is cfs-config-util's
// exit code.
package main

import (
	"fmt"
	"os"
)

func main() {
	e := newEntrypoint()
	if err := e.run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "cfs-entrypoint:", err)
		os.Exit(1)
	}
}
