package wrapper

import (
	"errors"
	"strings"

	"github.com/findy-network/findy-common-go/crypto/db"
	"github.com/findy-network/findy-common-go/dto"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

var errNotOpen = errors.New("storage provider not open")

// entry is what is actually written to the bucket. Keys are hashed so the
// original key travels with the value for the iterators.
type entry struct {
	Key   string
	Value []byte
	Tags  []storage.Tag
}

type bucket struct {
	bucketID byte
	name     string
	owner    *StorageProvider
}

func newBucket(owner *StorageProvider, bucketID byte, name string) *bucket {
	return &bucket{
		owner:    owner,
		bucketID: bucketID,
		name:     name,
	}
}

// Put stores the key + value pair along with the (optional) tags.
// If key is empty or value is nil, then an error will be returned.
func (b *bucket) Put(key string, value []byte, tags ...storage.Tag) (err error) {
	glog.V(7).Infoln("bucket::Put", b.name, key, tags)

	if key == "" || value == nil {
		return errors.New("key and value are mandatory")
	}
	e := entry{Key: key, Value: value, Tags: tags}
	return b.owner.addData(b.bucketID, []byte(key), dto.ToGOB(&e))
}

func (b *bucket) get(key string) (e *entry, err error) {
	defer err2.Handle(&err)

	if key == "" {
		return nil, errors.New("key is mandatory")
	}
	data := try.To1(b.owner.getData(b.bucketID, []byte(key)))
	if len(data) == 0 {
		return nil, storage.ErrDataNotFound
	}
	e = new(entry)
	dto.FromGOB(data, e)
	return e, nil
}

// Get fetches the value associated with the given key.
// If key cannot be found, then an error wrapping ErrDataNotFound will be returned.
// If key is empty, then an error will be returned.
func (b *bucket) Get(key string) (data []byte, err error) {
	glog.V(7).Infoln("bucket::Get", b.name, key)

	e, err := b.get(key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (b *bucket) GetTags(key string) ([]storage.Tag, error) {
	glog.V(7).Infoln("bucket::GetTags", b.name, key)

	e, err := b.get(key)
	if err != nil {
		return nil, err
	}
	return e.Tags, nil
}

func (b *bucket) GetBulk(keys ...string) (values [][]byte, err error) {
	glog.V(7).Infoln("bucket::GetBulk", b.name, keys)

	values = make([][]byte, len(keys))
	for i, key := range keys {
		e, err := b.get(key)
		if errors.Is(err, storage.ErrDataNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		values[i] = e.Value
	}
	return values, nil
}

// Query supports the expressions "TagName" and "TagName:TagValue". The whole
// bucket is scanned.
func (b *bucket) Query(expression string, _ ...storage.QueryOption) (it storage.Iterator, err error) {
	defer err2.Handle(&err, "query %s", expression)

	glog.V(7).Infoln("bucket::Query", b.name, expression)

	if expression == "" {
		return nil, storage.ErrDataNotFound
	}
	name, value, withValue := strings.Cut(expression, ":")

	result := &iterator{index: -1}
	_ = try.To1(b.owner.getAll(b.bucketID, func(data []byte) []byte {
		var e entry
		dto.FromGOB(data, &e)
		for _, tag := range e.Tags {
			if tag.Name == name && (!withValue || tag.Value == value) {
				result.entries = append(result.entries, e)
				break
			}
		}
		return data
	}))
	return result, nil
}

// Delete deletes the key + value pair (and all tags) associated with key.
// If key is empty, then an error will be returned.
func (b *bucket) Delete(key string) error {
	glog.V(7).Infoln("bucket::Delete", b.name, key)

	if key == "" {
		return errors.New("key is mandatory")
	}
	return b.owner.deleteData(b.bucketID, key)
}

// Batch runs the operations one by one, the managed DB has no multi key
// transactions.
func (b *bucket) Batch(operations []storage.Operation) (err error) {
	defer err2.Handle(&err, "batch")

	for _, op := range operations {
		if op.Value == nil {
			try.To(b.Delete(op.Key))
			continue
		}
		try.To(b.Put(op.Key, op.Value, op.Tags...))
	}
	return nil
}

// GetAll returns the raw values of the bucket. The transform is called for
// each value.
func (b *bucket) GetAll(transform db.Filter) ([][]byte, error) {
	glog.V(7).Infoln("bucket::GetAll", b.name)

	values := make([][]byte, 0)
	_, err := b.owner.getAll(b.bucketID, func(data []byte) []byte {
		var e entry
		dto.FromGOB(data, &e)
		if transform != nil {
			e.Value = transform(e.Value)
		}
		if e.Value != nil {
			values = append(values, e.Value)
		}
		return data
	})
	return values, err
}

// Flush is a no-op, every Put is committed right away.
func (b *bucket) Flush() error {
	return nil
}

// Close closes this store object, freeing resources. For persistent store implementations, this does not delete
// any data in the underlying databases.
// Close can be called repeatedly on the same store multiple times without causing an error.
func (b *bucket) Close() error {
	glog.V(7).Infoln("bucket::Close")
	// skip this for now as Storage instance is handling closing
	return nil
}

type iterator struct {
	entries []entry
	index   int
}

func (it *iterator) Next() (bool, error) {
	it.index++
	return it.index < len(it.entries), nil
}

func (it *iterator) current() (*entry, error) {
	if it.index < 0 || it.index >= len(it.entries) {
		return nil, storage.ErrDataNotFound
	}
	return &it.entries[it.index], nil
}

func (it *iterator) Key() (string, error) {
	e, err := it.current()
	if err != nil {
		return "", err
	}
	return e.Key, nil
}

func (it *iterator) Value() ([]byte, error) {
	e, err := it.current()
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (it *iterator) Tags() ([]storage.Tag, error) {
	e, err := it.current()
	if err != nil {
		return nil, err
	}
	return e.Tags, nil
}

func (it *iterator) TotalItems() (int, error) {
	return len(it.entries), nil
}

func (it *iterator) Close() error {
	return nil
}
