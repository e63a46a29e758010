package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"ecreceive/internal/logging"
)

type opKind int

const (
	opGet opKind = iota
	opAdd
	opSubtract
	opLock
	opUnlock
	opDelete
	opKeys
)

type request struct {
	op    opKind
	key   string
	flag  Flag
	reply chan response
}

type response struct {
	flags Flag
	ok    bool
	keys  []string
	err   error
}

// Service owns a Store and serializes every read and mutation through a
// single goroutine. All other components reach the checkpoint through the
// synchronous request/response methods below, which turns the checkpoint
// file writes into a linearizable sequence no matter how many workers call
// concurrently.
type Service struct {
	store    *Store
	logger   *slog.Logger
	requests chan request
}

// NewService wraps store in a single-owner arbitration loop. Run must be
// started before any request method is called.
func NewService(store *Store, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "checkpoint"),
		requests: make(chan request),
	}
}

// Run serves checkpoint requests until ctx is cancelled. Persistence
// failures are returned to the requesting caller, not swallowed here.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("checkpoint service started", logging.String("path", s.store.Path()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.requests:
			req.reply <- s.dispatch(req)
		}
	}
}

func (s *Service) dispatch(req request) response {
	switch req.op {
	case opGet:
		return response{flags: s.store.Get(req.key)}
	case opAdd:
		flags, err := s.store.Add(req.key, req.flag)
		return response{flags: flags, err: err}
	case opSubtract:
		flags, err := s.store.Subtract(req.key, req.flag)
		return response{flags: flags, err: err}
	case opLock:
		ok, err := s.store.Lock(req.key)
		return response{ok: ok, err: err}
	case opUnlock:
		return response{err: s.store.Unlock(req.key)}
	case opDelete:
		return response{err: s.store.Delete(req.key)}
	case opKeys:
		return response{keys: s.store.Keys()}
	default:
		return response{err: fmt.Errorf("unknown checkpoint operation %d", req.op)}
	}
}

func (s *Service) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	select {
	case <-ctx.Done():
		return response{}, ctx.Err()
	case s.requests <- req:
	}
	select {
	case <-ctx.Done():
		return response{}, ctx.Err()
	case resp := <-req.reply:
		return resp, resp.err
	}
}

// Get returns the flags recorded for key.
func (s *Service) Get(ctx context.Context, key string) (Flag, error) {
	resp, err := s.call(ctx, request{op: opGet, key: key})
	return resp.flags, err
}

// Add ORs flag into the entry for key and returns the resulting mask.
func (s *Service) Add(ctx context.Context, key string, flag Flag) (Flag, error) {
	resp, err := s.call(ctx, request{op: opAdd, key: key, flag: flag})
	return resp.flags, err
}

// Subtract clears flag from the entry for key and returns the resulting mask.
func (s *Service) Subtract(ctx context.Context, key string, flag Flag) (Flag, error) {
	resp, err := s.call(ctx, request{op: opSubtract, key: key, flag: flag})
	return resp.flags, err
}

// Lock attempts to take the exclusive processing lock for key.
func (s *Service) Lock(ctx context.Context, key string) (bool, error) {
	resp, err := s.call(ctx, request{op: opLock, key: key})
	return resp.ok, err
}

// Unlock releases the processing lock for key.
func (s *Service) Unlock(ctx context.Context, key string) error {
	_, err := s.call(ctx, request{op: opUnlock, key: key})
	return err
}

// Delete removes the entry for key.
func (s *Service) Delete(ctx context.Context, key string) error {
	_, err := s.call(ctx, request{op: opDelete, key: key})
	return err
}

// Keys returns all checkpointed dataset filenames.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	resp, err := s.call(ctx, request{op: opKeys})
	return resp.keys, err
}
