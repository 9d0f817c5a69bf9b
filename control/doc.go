// License: Apache-2.0
//
// Package control holds the operator-facing surface around a Manager:
// dynamic configuration with hot-reload listeners, a metrics registry,
// and debug probe introspection. None of it touches evloop's connection
// list directly; callers wire it in from their own Poll loop or test code
// (see TestBindManagerTunablesAppliesAndReapplies in control_test.go).
package control
