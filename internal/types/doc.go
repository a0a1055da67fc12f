// Package types provides the canonical data shapes shared by the discovery pipeline:
// task types, normalized provider results, and derived business signals.
//
//nolint:revive // types is a standard Go package name pattern
package types
