package fsmeta

import "golang.org/x/sys/unix"

const xattrPrefix = ""

var errNoAttr = unix.ENOATTR
