// Package mrdb is the local ledger of merge requests and their version
// history: an append-only map from (request iid, version number) to the
// (base, head) window under review at that point in the request's life.
package mrdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sprite-ai/revq/internal/gitlab"
)

// Key layout:
//
//	mr/req/<iid8 BE>          -> merge request metadata, JSON
//	mr/ver/<iid8 BE><num4 BE> -> base sha (20B) + head sha (20B)
var (
	prefixRequest = []byte("mr/req/")
	prefixVersion = []byte("mr/ver/")
)

// Version is one recorded (base, head) window of a merge request. Numbers
// are zero-based and strictly increasing per request.
type Version struct {
	Num  int
	Base plumbing.Hash
	Head plumbing.Hash
}

// String renders like the CLI shows versions: one-based, base..head.
func (v Version) String() string {
	return fmt.Sprintf("v%d: %s..%s", v.Num+1, v.Base, v.Head)
}

// DB wraps the badger instance holding the merge request ledger.
type DB struct {
	db *badger.DB
}

// New builds the ledger over an open badger database.
func New(db *badger.DB) *DB {
	return &DB{db: db}
}

// Versions returns every recorded version of a request, oldest first.
func (d *DB) Versions(iid int64) ([]Version, error) {
	prefix := versionPrefix(iid)
	var versions []Version
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			num := int(binary.BigEndian.Uint32(item.Key()[len(prefix):]))
			v := Version{Num: num}
			err := item.Value(func(val []byte) error {
				if len(val) != 40 {
					return fmt.Errorf("corrupt version record !%d v%d: %d bytes", iid, num, len(val))
				}
				copy(v.Base[:], val[:20])
				copy(v.Head[:], val[20:])
				return nil
			})
			if err != nil {
				return err
			}
			versions = append(versions, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read versions of !%d: %w", iid, err)
	}
	return versions, nil
}

// Latest returns the highest-numbered version of a request, or nil.
func (d *DB) Latest(iid int64) (*Version, error) {
	versions, err := d.Versions(iid)
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	return &versions[len(versions)-1], nil
}

// Insert records a version. Once written a version number is immutable: if
// the number already exists, the stored record is returned unchanged and
// nothing is written — the caller decides whether a differing value is worth
// a warning.
func (d *DB) Insert(iid int64, v Version) (*Version, error) {
	key := versionKey(iid, v.Num)
	var existing *Version

	err := d.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			stored := Version{Num: v.Num}
			err := item.Value(func(val []byte) error {
				if len(val) != 40 {
					return fmt.Errorf("corrupt version record !%d v%d: %d bytes", iid, v.Num, len(val))
				}
				copy(stored.Base[:], val[:20])
				copy(stored.Head[:], val[20:])
				return nil
			})
			if err != nil {
				return err
			}
			existing = &stored
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		val := make([]byte, 40)
		copy(val[:20], v.Base[:])
		copy(val[20:], v.Head[:])
		return txn.Set(key, val)
	})
	if err != nil {
		return nil, fmt.Errorf("insert version !%d v%d: %w", iid, v.Num, err)
	}
	return existing, nil
}

// SaveRequest caches the merge request metadata.
func (d *DB) SaveRequest(mr gitlab.MergeRequest) error {
	payload, err := json.Marshal(mr)
	if err != nil {
		return fmt.Errorf("encode merge request !%d: %w", mr.IID, err)
	}
	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(requestKey(mr.IID), payload)
	})
	if err != nil {
		return fmt.Errorf("save merge request !%d: %w", mr.IID, err)
	}
	return nil
}

// Request returns the cached metadata for a request, if present.
func (d *DB) Request(iid int64) (*gitlab.MergeRequest, bool, error) {
	var mr gitlab.MergeRequest
	found := false
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(requestKey(iid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &mr)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("read merge request !%d: %w", iid, err)
	}
	if !found {
		return nil, false, nil
	}
	return &mr, true, nil
}

// ForEachRequest visits every cached merge request, ordered by iid.
func (d *DB) ForEachRequest(fn func(gitlab.MergeRequest) error) error {
	return d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixRequest
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefixRequest); it.ValidForPrefix(prefixRequest); it.Next() {
			var mr gitlab.MergeRequest
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &mr)
			})
			if err != nil {
				return fmt.Errorf("decode cached merge request: %w", err)
			}
			if err := fn(mr); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRequest removes a request's cached metadata and, with it, the
// request's recorded versions. Used when the remote reports the request no
// longer exists.
func (d *DB) DeleteRequest(iid int64) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(requestKey(iid)); err != nil {
			return err
		}
		prefix := versionPrefix(iid)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete merge request !%d: %w", iid, err)
	}
	return nil
}

func requestKey(iid int64) []byte {
	key := append([]byte{}, prefixRequest...)
	return binary.BigEndian.AppendUint64(key, uint64(iid))
}

func versionPrefix(iid int64) []byte {
	key := append([]byte{}, prefixVersion...)
	return binary.BigEndian.AppendUint64(key, uint64(iid))
}

func versionKey(iid int64, num int) []byte {
	return binary.BigEndian.AppendUint32(versionPrefix(iid), uint32(num))
}
