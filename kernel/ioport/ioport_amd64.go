//go:build amd64 && baremetal

package ioport

// init points Out/In at the real port-I/O primitives (outbAsm/inbAsm,
// implemented in ioport_amd64.s) once the kernel is actually running on
// bare metal. The hosted/simulator build (the default, with no tag)
// never compiles this file, keeping the in-memory Sim the default
// everywhere tests run; IN/OUT are privileged instructions and would
// fault immediately under a hosted OS.
func init() {
	Out = outbAsm
	In = inbAsm
}

// outbAsm and inbAsm are declared here and defined in ioport_amd64.s.
func outbAsm(port uint16, val byte)
func inbAsm(port uint16) byte
