package store

import (
	"context"
	"errors"
	"time"
)

// Results reported to a Recorder.
const (
	ResultOK    = "ok"
	ResultError = "error"
	// ResultAborted marks an Update whose updater declined to write.
	ResultAborted = "aborted"
)

// Recorder receives one observation per store operation. collection is the
// key reduced by Collection, so per-client keys share one series.
type Recorder interface {
	RecordStoreOp(op, collection, result string, elapsed time.Duration)
}

type instrumented struct {
	Store
	rec Recorder
}

// Instrument wraps s so every Get/Set/Update is reported to rec.
func Instrument(s Store, rec Recorder) Store {
	if rec == nil {
		return s
	}
	return &instrumented{Store: s, rec: rec}
}

func (i *instrumented) SharedFeed() bool {
	return ObservesAllWrites(i.Store)
}

func (i *instrumented) record(op, key, result string, start time.Time) {
	i.rec.RecordStoreOp(op, Collection(key), result, time.Since(start))
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	raw, found, err := i.Store.Get(ctx, key)
	i.record("get", key, resultOf(err), start)
	return raw, found, err
}

func (i *instrumented) Set(ctx context.Context, key string, raw []byte) error {
	start := time.Now()
	err := i.Store.Set(ctx, key, raw)
	i.record("set", key, resultOf(err), start)
	return err
}

func (i *instrumented) Update(ctx context.Context, key string, fn UpdateFunc) error {
	start := time.Now()
	var fnErr error
	err := i.Store.Update(ctx, key, func(raw []byte, found bool) ([]byte, error) {
		next, err := fn(raw, found)
		fnErr = err
		return next, err
	})
	result := resultOf(err)
	if err != nil && fnErr != nil && errors.Is(err, fnErr) {
		result = ResultAborted
	}
	i.record("update", key, result, start)
	return err
}
