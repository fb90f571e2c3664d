//go:build cgo

package postgres

const cgoEnabled = true
