package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// store bundles the database handle with the commit discipline shared by all
// writers: every write runs in one transaction bounded by the commit timeout.
type store struct {
	db      *gorm.DB
	log     *logrus.Logger
	timeout time.Duration
}

func newStore(db *gorm.DB, log *logrus.Logger, timeout time.Duration) store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return store{db: db, log: log, timeout: timeout}
}

// transaction runs fn in a transaction. Service errors returned by fn pass
// through unchanged; anything else is logged and reported as a store failure.
func (s store) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	s.log.WithError(err).WithField("op", op).Error("transaction failed")
	return storeError(op, err)
}

// read returns a session for read-only queries bounded by the commit timeout.
func (s store) read(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func (s store) fail(op string, err error) error {
	s.log.WithError(err).WithField("op", op).Error("query failed")
	return storeError(op, err)
}

// forUpdate adds a row lock on engines that support it. sqlite serialises
// writers already.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func notFound(err error, sentinel *Error) error {
	if isRecordNotFound(err) {
		return sentinel
	}
	return err
}
