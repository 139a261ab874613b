package cachestore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// 键布局：层标记 "t\x00<name>"，条目 "e\x00<name>\x00<method>\x00<url>"。
// 层名与标识之间用 NUL 分隔，避免层名前缀互相污染。
const (
	tierMarkerPrefix = "t\x00"
	entryPrefix      = "e\x00"
)

// NewStore 在 path 打开（或创建）goleveldb 数据库，整个进程复用一份实例。
func NewStore(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("storage path required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	return &levelStore{
		db:    db,
		tiers: make(map[string]*levelTier),
	}, nil
}

type levelStore struct {
	db *leveldb.DB

	mu    sync.Mutex
	tiers map[string]*levelTier
}

func (s *levelStore) Open(name string) (Tier, error) {
	if name == "" {
		return nil, errors.New("tier name required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tier, ok := s.tiers[name]; ok {
		return tier, nil
	}

	if err := s.db.Put(tierMarkerKey(name), []byte{1}, nil); err != nil {
		return nil, fmt.Errorf("create tier %s: %w", name, err)
	}

	tier := &levelTier{db: s.db, name: name}
	s.tiers[name] = tier
	return tier, nil
}

func (s *levelStore) DeleteTier(name string) (bool, error) {
	if name == "" {
		return false, errors.New("tier name required")
	}

	s.mu.Lock()
	delete(s.tiers, name)
	s.mu.Unlock()

	existed, err := s.db.Has(tierMarkerKey(name), nil)
	if err != nil {
		return false, fmt.Errorf("probe tier %s: %w", name, err)
	}

	batch := new(leveldb.Batch)
	it := s.db.NewIterator(util.BytesPrefix(tierEntryPrefix(name)), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	iterErr := it.Error()
	it.Release()
	if iterErr != nil {
		return existed, fmt.Errorf("scan tier %s: %w", name, iterErr)
	}

	batch.Delete(tierMarkerKey(name))
	if err := s.db.Write(batch, nil); err != nil {
		return existed, fmt.Errorf("delete tier %s: %w", name, err)
	}
	return existed, nil
}

func (s *levelStore) ListTiers() ([]string, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(tierMarkerPrefix)), nil)
	defer it.Release()

	var names []string
	for it.Next() {
		names = append(names, string(bytes.TrimPrefix(it.Key(), []byte(tierMarkerPrefix))))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return names, nil
}

func (s *levelStore) Close() error {
	return s.db.Close()
}

type levelTier struct {
	db   *leveldb.DB
	name string
}

func (t *levelTier) Name() string {
	return t.name
}

func (t *levelTier) Get(id Identity) (*StoredResponse, error) {
	raw, err := t.db.Get(entryKey(t.name, id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s from %s: %w", id.URL, t.name, err)
	}

	var resp StoredResponse
	if err := decodeGob(raw, &resp); err != nil {
		// 损坏的条目视同未命中，调用方会按回退链继续。
		return nil, fmt.Errorf("decode %s in %s: %w", id.URL, t.name, err)
	}
	return &resp, nil
}

func (t *levelTier) Put(id Identity, resp *StoredResponse) error {
	if resp == nil {
		return errors.New("stored response required")
	}
	raw, err := encodeGob(resp)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id.URL, err)
	}
	if err := t.db.Put(entryKey(t.name, id), raw, nil); err != nil {
		return fmt.Errorf("write %s into %s: %w", id.URL, t.name, err)
	}
	return nil
}

func (t *levelTier) Delete(id Identity) error {
	if err := t.db.Delete(entryKey(t.name, id), nil); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("delete %s from %s: %w", id.URL, t.name, err)
	}
	return nil
}

func (t *levelTier) Keys() ([]Identity, error) {
	prefix := tierEntryPrefix(t.name)
	it := t.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var ids []Identity
	for it.Next() {
		rest := string(bytes.TrimPrefix(it.Key(), prefix))
		method, url, found := strings.Cut(rest, "\x00")
		if !found {
			continue
		}
		ids = append(ids, Identity{Method: method, URL: url})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scan tier %s: %w", t.name, err)
	}
	return ids, nil
}

func tierMarkerKey(name string) []byte {
	return []byte(tierMarkerPrefix + name)
}

func tierEntryPrefix(name string) []byte {
	return []byte(entryPrefix + name + "\x00")
}

// entryKey 的方法与 URL 之间也用 \x00 分隔：URL 自身可能含空格，
// 方法名不会含 NUL，往返解析因此无歧义。
func entryKey(name string, id Identity) []byte {
	return append(tierEntryPrefix(name), []byte(id.Method+"\x00"+id.URL)...)
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
