package entity

import "github.com/chazu/amalgraph/intern"

func newTestPool() *intern.Pool {
	return intern.New()
}
