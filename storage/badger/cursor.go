// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// CursorStore implements storage.CursorStore for BadgerDB.
type CursorStore struct {
	backend *Backend
}

var _ storage.CursorStore = (*CursorStore)(nil)

// NewCursorStore creates a new CursorStore.
func NewCursorStore(backend *Backend) *CursorStore {
	return &CursorStore{
		backend: backend,
	}
}

// SaveCursor persists the cursor for its run.
func (r *CursorStore) SaveCursor(ctx context.Context, cursor *core.ScrapeCursor) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		cursor.UpdatedAt = time.Now().UTC()
		value, err := storage.MarshalCursor(cursor)
		if err != nil {
			return err
		}
		return tx.Set(makeCursorKey(cursor.RunID), value)
	})
}

// LoadCursor retrieves the cursor for a run.
// Returns storage.ErrNotFound if no cursor exists.
func (r *CursorStore) LoadCursor(ctx context.Context, runID string) (*core.ScrapeCursor, error) {
	var cursor *core.ScrapeCursor
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(makeCursorKey(runID))
		if err != nil {
			if isNotFound(err) {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			cursor, unmarshalErr = storage.UnmarshalCursor(val)
			return unmarshalErr
		})
	})

	return cursor, err
}
