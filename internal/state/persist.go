package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/logging"
)

// Persistable is a slice of state that can be snapshotted, watched and
// restored.
type Persistable[S any] interface {
	Snapshot() S
	Subscribe(fn func(S)) func()
	Hydrate(S)
}

// Storage is a key/document store for persisted slices.
type Storage interface {
	Load(key string) (map[string]any, bool, error)
	Save(key string, doc map[string]any) error
	Remove(key string) error
}

// Persist restores the whitelisted fields of slice from storage under key,
// then writes those fields back after every change. Field names are the
// slice's JSON names. The returned func stops persisting.
func Persist[S any](ctx context.Context, slice Persistable[S], storage Storage, key string, whitelist ...string) (func(), error) {
	l := logging.FromContext(ctx).With("svc", "state.persist", "key", key)

	stored, found, err := storage.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if found {
		restored, err := overlay(slice.Snapshot(), filterFields(stored, whitelist))
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", key, err)
		}
		slice.Hydrate(restored)
	}

	return slice.Subscribe(func(s S) {
		doc, err := toDocument(s)
		if err != nil {
			l.Error("persist_encode_failed", "error", err)
			return
		}
		if err := storage.Save(key, filterFields(doc, whitelist)); err != nil {
			l.Error("persist_save_failed", "error", err)
		}
	}), nil
}

func toDocument(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// overlay writes fields over the JSON form of base and decodes the result.
func overlay[S any](base S, fields map[string]any) (S, error) {
	var out S
	doc, err := toDocument(base)
	if err != nil {
		return out, err
	}
	for k, v := range fields {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

func filterFields(doc map[string]any, whitelist []string) map[string]any {
	out := make(map[string]any, len(whitelist))
	for _, k := range whitelist {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out
}
