package wrapper

import (
	"flag"
	"os"
	"sync"
	"testing"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	testKey    = "key1"
	testValue  = []byte("value1")
	testConfig = Config{
		Key:       "15308490f1e4026284594dd08d31291bc8ef2aeac730d0daf6ff87bb92d4336c",
		FileName:  "wrapper_test",
		FilePath:  ".",
		BucketIDs: []string{"id1", "id2"},
	}
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	try.To(flag.Set("logtostderr", "true"))
	try.To(flag.Set("stderrthreshold", "WARNING"))
	try.To(flag.Set("v", "10"))
	flag.Parse()
}

func tearDown() {
	os.RemoveAll(testConfig.FilePath + "/" + testConfig.FileName + ".bolt")
}

func TestOpen(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()
	s := New(testConfig)
	err := s.Init()
	assert.NoError(err)
	assert.INotNil(s)

	err = s.Close()
	assert.NoError(err)
}

func TestOpenStore(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()
	s := New(testConfig)
	err := s.Init()
	assert.NoError(err)
	assert.INotNil(s)

	store1, err := s.OpenStore(testConfig.BucketIDs[0])
	assert.NoError(err)
	assert.INotNil(store1)

	store2, err := s.OpenStore(testConfig.BucketIDs[1])
	assert.NoError(err)
	assert.INotNil(store2)

	store3, err := s.OpenStore("notExist")
	assert.Error(err)
	assert.INil(store3)

	err = s.Close()
	assert.NoError(err)
}

func TestReadData(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()
	s := New(testConfig)
	err := s.Init()
	assert.NoError(err)
	assert.INotNil(s)

	store1, err := s.OpenStore(testConfig.BucketIDs[0])
	assert.NoError(err)
	assert.INotNil(store1)

	var (
		key   = "key1"
		value = []byte("value1")
	)
	err = store1.Put(key, value)
	assert.NoError(err)

	got, err := store1.Get(key)
	assert.NoError(err)
	assert.DeepEqual(value, got)

	err = s.Close()
	assert.NoError(err)
}

func TestDeleteData(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()
	s := New(testConfig)
	err := s.Init()
	assert.NoError(err)
	assert.INotNil(s)

	store1, err := s.OpenStore(testConfig.BucketIDs[0])
	assert.NoError(err)
	assert.INotNil(store1)

	err = store1.Put(testKey, testValue)
	assert.NoError(err)

	got, err := store1.Get(testKey)
	assert.NoError(err)
	assert.DeepEqual(testValue, got)

	err = store1.Delete(testKey)
	assert.NoError(err)

	got, err = store1.Get(testKey)
	assert.Error(err)
	assert.SNil(got)

	err = s.Close()
	assert.NoError(err)
}

func TestConcurrentDataAccess(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()
	s := New(testConfig)
	wg := &sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Init()
			assert.NoError(err)
			assert.INotNil(s)

			store1, err := s.OpenStore(testConfig.BucketIDs[0])
			assert.NoError(err)
			assert.INotNil(store1)

			err = store1.Put(testKey, testValue)
			assert.NoError(err)

			got, err := store1.Get(testKey)
			assert.NoError(err)
			assert.DeepEqual(testValue, got)
		}()
	}
	wg.Wait()
	err := s.Close()
	assert.NoError(err)
}

func TestTagsAndQuery(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()
	s := New(testConfig)
	assert.NoError(s.Init())
	defer func() { assert.NoError(s.Close()) }()

	store, err := s.OpenStore(testConfig.BucketIDs[1])
	assert.NoError(err)

	assert.NoError(store.Put("rec1", []byte("1"),
		storage.Tag{Name: "kind", Value: "connection"}))
	assert.NoError(store.Put("rec2", []byte("2"),
		storage.Tag{Name: "kind", Value: "credential"}))
	assert.NoError(store.Put("rec3", []byte("3"),
		storage.Tag{Name: "kind", Value: "connection"},
		storage.Tag{Name: "thid", Value: "t-3"}))

	tags, err := store.GetTags("rec3")
	assert.NoError(err)
	assert.SLen(tags, 2)

	tests := []struct {
		name  string
		query string
		count int
	}{
		{"by name", "kind", 3},
		{"by value", "kind:connection", 2},
		{"single", "thid:t-3", 1},
		{"none", "thid:t-4", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			it, err := store.Query(tt.query)
			assert.NoError(err)
			keys := make([]string, 0)
			for more := try.To1(it.Next()); more; more = try.To1(it.Next()) {
				keys = append(keys, try.To1(it.Key()))
			}
			assert.SLen(keys, tt.count)
			total, _ := it.TotalItems()
			assert.Equal(total, tt.count)
		})
	}

	values, err := store.GetBulk("rec1", "missing", "rec2")
	assert.NoError(err)
	assert.SLen(values, 3)
	assert.SNil(values[1])
	assert.DeepEqual(values[2], []byte("2"))

	assert.NoError(store.Batch([]storage.Operation{
		{Key: "rec1"},
		{Key: "rec4", Value: []byte("4")},
	}))
	_, err = store.Get("rec1")
	assert.Error(err)
	got, err := store.Get("rec4")
	assert.NoError(err)
	assert.DeepEqual(got, []byte("4"))
}

func TestStoreConfig(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()
	s := New(testConfig)

	err := s.SetStoreConfig("notExist", storage.StoreConfiguration{})
	assert.Error(err)

	cfg := storage.StoreConfiguration{TagNames: []string{"kind"}}
	assert.NoError(s.SetStoreConfig(testConfig.BucketIDs[0], cfg))
	got, err := s.GetStoreConfig(testConfig.BucketIDs[0])
	assert.NoError(err)
	assert.DeepEqual(got, cfg)
	assert.SLen(s.GetOpenStores(), 2)
}
