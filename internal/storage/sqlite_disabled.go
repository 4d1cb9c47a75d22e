//go:build !sqlite

package storage

import (
	"errors"

	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New(`sqlite driver not compiled in (build with -tags sqlite)`)
}
