// SPDX-License-Identifier: MPL-2.0

package main

import "cfs-config-util/cmd/cfs-config-util/cmd"

func main() {
	cmd.Execute()
}
