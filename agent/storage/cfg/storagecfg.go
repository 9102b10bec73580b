// Package cfg opens agent storages by their configuration and keeps them
// open for the life time of the process. An empty file path selects the
// memory storage.
package cfg

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/findy-network/findy-exchange/agent/storage/mgddb"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type AgentStorage struct {
	api.AgentStorageConfig
}

type StorageInfo struct {
	storage *mgddb.Storage
	handle  int
	isOpen  bool
}

type InfoMap map[string]StorageInfo

var (
	storages = struct {
		InfoMap
		handles []*mgddb.Storage
		sync.Mutex
	}{
		InfoMap: make(InfoMap),
		handles: make([]*mgddb.Storage, 0, 12),
	}
)

func (c *AgentStorage) UniqueID() string {
	return filepath.Join(c.FilePath, c.AgentID)
}

func (c *AgentStorage) ID() string {
	return c.AgentID
}

func (c *AgentStorage) Key() string {
	return c.AgentKey
}

func (c *AgentStorage) IsMemory() bool {
	return c.FilePath == ""
}

// OpenStorage opens the storage or returns the handle of the already open
// one.
func (c *AgentStorage) OpenStorage() (h int, err error) {
	defer err2.Handle(&err, "open agent storage from cfg")

	storages.Lock()
	defer storages.Unlock()

	info, exist := storages.InfoMap[c.UniqueID()]
	if exist {
		try.To(info.storage.Open())
		glog.V(5).Infoln("open existing agent storage:", c.AgentID)
		info.isOpen = true
		storages.InfoMap[c.UniqueID()] = info
		return info.handle, nil
	}

	var aStorage *mgddb.Storage
	if c.IsMemory() {
		aStorage = try.To1(mgddb.NewMemory())
	} else {
		aStorage = try.To1(mgddb.New(c.AgentStorageConfig))
	}
	glog.V(5).Infoln("successful first time opening agent storage:", c.AgentID)

	handle := len(storages.handles)
	storages.handles = append(storages.handles, aStorage)
	storages.InfoMap[c.UniqueID()] = StorageInfo{
		storage: aStorage,
		handle:  handle,
		isOpen:  true,
	}
	return handle, nil
}

func (c *AgentStorage) CloseStorage(handle int) (err error) {
	defer err2.Handle(&err, "close agent storage from cfg")

	storages.Lock()
	defer storages.Unlock()

	info, exist := storages.InfoMap[c.UniqueID()]
	if !exist || info.handle != handle {
		return fmt.Errorf("storage %s handle %d not open", c.UniqueID(), handle)
	}

	if info.isOpen {
		try.To(info.storage.Close())
		glog.V(5).Infoln("successful closing agent storage:", c.AgentID)
		// closing flag is updated only if Close() success
		info.isOpen = false
		storages.InfoMap[c.UniqueID()] = info
	} else {
		glog.Warningf("CloseStorage called but storage (%s) not open!",
			c.UniqueID())
	}
	return nil
}

// Storage returns the storage of the handle or nil.
func Storage(handle int) *mgddb.Storage {
	storages.Lock()
	defer storages.Unlock()

	if handle < 0 || handle >= len(storages.handles) {
		return nil
	}
	return storages.handles[handle]
}
