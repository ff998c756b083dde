package badger

import (
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// ledgerLogger sends Badger's printf-style output to a named zap logger. Badger's info lines
// (compaction, value log rotation) are noisy, so they go out at debug.
type ledgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badgerdb.Logger = (*ledgerLogger)(nil)

func newLedgerLogger(l *zap.Logger) *ledgerLogger {
	return &ledgerLogger{sugar: l.Named("badger").Sugar()}
}

func (b *ledgerLogger) Errorf(format string, args ...interface{})   { b.sugar.Errorf(format, args...) }
func (b *ledgerLogger) Warningf(format string, args ...interface{}) { b.sugar.Warnf(format, args...) }
func (b *ledgerLogger) Infof(format string, args ...interface{})    { b.sugar.Debugf(format, args...) }
func (b *ledgerLogger) Debugf(format string, args ...interface{})   { b.sugar.Debugf(format, args...) }
