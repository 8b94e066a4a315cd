package badger

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/storage"
)

var errClosed = storage.ErrStorageClosed

// Key prefixes for different data types
const (
	vectorPrefix         = "vec:"
	publicationPrefix    = "pub:"
	publicationTimeIndex = "pubt:"
	objectPrefix         = "obj:"
	cursorPrefix         = "cur:"
)

func makeVectorKey(id string) []byte {
	return []byte(vectorPrefix + id)
}

func makePublicationKey(title string) []byte {
	return []byte(publicationPrefix + title)
}

// makePublicationTimeKey generates a composite key for the insertion-order index.
// Format: prefix:timestamp:title
func makePublicationTimeKey(insertedAt time.Time, title string) []byte {
	buf := make([]byte, len(publicationTimeIndex)+8+len(title))
	offset := copy(buf, publicationTimeIndex)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(insertedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], title)
	return buf
}

func makeObjectKey(key string) []byte {
	return []byte(objectPrefix + key)
}

func makeCursorKey(runID string) []byte {
	return []byte(cursorPrefix + runID)
}

// isNotFound maps badger's missing-key error to storage.ErrNotFound.
func isNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}
