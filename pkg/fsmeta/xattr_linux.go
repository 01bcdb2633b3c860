package fsmeta

import "golang.org/x/sys/unix"

// Unprivileged processes may only write the user namespace on Linux
const xattrPrefix = "user."

var errNoAttr = unix.ENODATA
