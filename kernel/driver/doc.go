// Package driver links every concrete device package (null, zero,
// console, fbcons, profdev; each a fdtable.FileHandle that self-registers
// into fdtable.Registry from its own init()) into one import a binary's
// entry point can take. zz_generated_imports.go carries the list, kept
// in sync by tools/gendrivers.
package driver

//go:generate go run ../../tools/gendrivers -module nanokern -out zz_generated_imports.go
