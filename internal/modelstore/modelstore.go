// Package modelstore persists trained classifiers in Badger, keyed by
// instrument and target.
package modelstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"nifty-signals/internal/classifier"
	"nifty-signals/internal/features"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/types"
)

const keyPrefix = "model/"

type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path     string
	InMemory bool
	ReadOnly bool
}

func Open(opts OpenOptions) (*Store, error) {
	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case strings.TrimSpace(opts.Path) == "":
		return nil, errors.New("modelstore: path is required")
	default:
		bopts = badger.DefaultOptions(opts.Path).WithReadOnly(opts.ReadOnly)
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("modelstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Key returns the storage key of symbol's model for target.
func Key(symbol string, target types.Target) string {
	return keyPrefix + symbol + "/" + string(target)
}

func (s *Store) Save(m *classifier.Logistic) error {
	if m == nil || m.Symbol == "" {
		return errors.New("modelstore: model has no symbol")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(Key(m.Symbol, m.Target)), b)
	})
}

// Load returns the stored model, or ok=false when none exists.
func (s *Store) Load(symbol string, target types.Target) (m *classifier.Logistic, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(Key(symbol, target)))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var lm classifier.Logistic
			if err := json.Unmarshal(val, &lm); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			m, ok = &lm, true
			return nil
		})
	})
	return m, ok, err
}

func (s *Store) Delete(symbol string, target types.Target) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(Key(symbol, target)))
	})
}

// Symbols lists instruments with at least one stored model, sorted.
func (s *Store) Symbols() ([]string, error) {
	seen := map[string]bool{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), keyPrefix)
			if i := strings.LastIndex(rest, "/"); i > 0 {
				seen[rest[:i]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

// Classifiers returns symbol's model pair. Models trained on a different
// feature layout are treated as absent.
func (s *Store) Classifiers(ctx context.Context, symbol string) (types.ClassifierPair, error) {
	var pair types.ClassifierPair
	for _, target := range []types.Target{types.TargetOpen, types.TargetClose} {
		m, ok, err := s.Load(symbol, target)
		if err != nil {
			return types.ClassifierPair{}, err
		}
		if !ok {
			continue
		}
		if !features.SameColumns(m.Columns) {
			logger.Warn(ctx, "Stored model has a stale feature layout, ignoring", "symbol", symbol, "target", target)
			continue
		}
		if target == types.TargetOpen {
			pair.Open = m
		} else {
			pair.Close = m
		}
	}
	return pair, nil
}
