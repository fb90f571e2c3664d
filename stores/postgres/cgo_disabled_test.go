//go:build !cgo

package postgres

const cgoEnabled = false
