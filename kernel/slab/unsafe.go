package slab

import "unsafe"

func readNext(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func writeNext(addr uintptr, next uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = next
}

func poison(addr uintptr, size int, b byte) {
	s := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	for i := range s {
		s[i] = b
	}
}
