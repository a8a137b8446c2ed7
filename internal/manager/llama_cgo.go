//go:build llama

package manager

// cgo link directives for the in-process llama adapter: rpath $ORIGIN so
// libllama.so is found next to the binary, -L for link time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
