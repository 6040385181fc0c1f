// Command gendrivers emits the generated blank-import list that links every
// kernel/driver/* package's init() (and therefore its fdtable.Registry.Register
// call) into the final binary. Driver packages are discovered with
// go/packages, so adding a new one needs no edit here: rerunning go generate
// adds it to the list, and boot.Init links the whole set through its one
// blank import of kernel/driver.
//
// Invoked via `go generate` from kernel/driver/doc.go; see that file's
// //go:generate directive.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path"
	"sort"

	"golang.org/x/tools/go/packages"
)

const header = "// Code generated by tools/gendrivers; DO NOT EDIT.\n\n"

func main() {
	modulePath := flag.String("module", "nanokern", "module path the driver tree lives under")
	out := flag.String("out", "kernel/driver/zz_generated_imports.go", "output file path")
	flag.Parse()

	cfg := &packages.Config{Mode: packages.NeedName}
	pkgs, err := packages.Load(cfg, *modulePath+"/kernel/driver/...")
	if err != nil {
		fmt.Fprintln(os.Stderr, "gendrivers:", err)
		os.Exit(1)
	}
	if packages.PrintErrors(pkgs) > 0 {
		os.Exit(1)
	}

	var imports []string
	for _, p := range pkgs {
		if p.PkgPath == *modulePath+"/kernel/driver" {
			continue // the package this file itself belongs to
		}
		imports = append(imports, p.PkgPath)
	}
	sort.Strings(imports)

	var buf bytes.Buffer
	buf.WriteString(header)
	fmt.Fprintf(&buf, "// %d driver package(s) discovered under %s/kernel/driver.\n", len(imports), *modulePath)
	buf.WriteString("package driver\n\nimport (\n")
	for _, imp := range imports {
		fmt.Fprintf(&buf, "\t_ %q // %s\n", imp, path.Base(imp))
	}
	buf.WriteString(")\n")

	src, err := format.Source(buf.Bytes())
	if err != nil {
		fmt.Fprintln(os.Stderr, "gendrivers: formatting generated source:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "gendrivers:", err)
		os.Exit(1)
	}
}
