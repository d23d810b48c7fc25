// Package config loads an analysis description written in HCL.
//
// An analysis is a set of top-level blocks, which may be split across several
// files in one directory:
//
//	variable "n" { default = 4 }
//	analysis { model = "normal" }
//	sampler  { generations = 1000 }
//	move "scale" "x" { weight = 1 }
//	monitor "file" { path = "trace.tsv" }
//	mc3 { chains = var.n }
//
// Expressions are evaluated with a small set of numeric and collection
// functions and the `var` object built from the variable defaults. The
// result is a format-agnostic Config; every value has been checked and
// defaulted by the time Load returns.
package config
