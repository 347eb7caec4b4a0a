// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Errors raised at the CLI boundary carry the operation that failed, the
// resource involved, and remediation suggestions so that an administrator
// running the utility inside an installer container can tell what to fix
// without reading source code.
package issue
