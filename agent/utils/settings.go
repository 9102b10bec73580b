package utils

import (
	"time"

	"github.com/golang/glog"
)

var Settings = &Hub{
	pollAttempts:      10,
	pollInterval:      500 * time.Millisecond,
	backoffKind:       "constant",
	relayKind:         "memory",
	schedulerInterval: time.Second,
}

// Hub holds the runtime settings the CLI reads from flags, env and config
// file. The protocol packages never read it, only the drivers do.
type Hub struct {
	storagePath string
	storageKey  string

	relayKind   string
	redisAddr   string
	redisPrefix string
	sealed      bool

	pollAttempts      int
	pollInterval      time.Duration
	backoffKind       string
	schedulerInterval time.Duration

	metricsAddr string
	versionInfo string
}

func (h *Hub) StoragePath() string {
	return h.storagePath
}

func (h *Hub) SetStoragePath(path string) {
	h.storagePath = path
}

func (h *Hub) StorageKey() string {
	return h.storageKey
}

func (h *Hub) SetStorageKey(key string) {
	h.storageKey = key
}

func (h *Hub) RelayKind() string {
	return h.relayKind
}

func (h *Hub) SetRelayKind(kind string) {
	glog.V(3).Infoln("relay kind:", kind)
	h.relayKind = kind
}

func (h *Hub) RedisAddr() string {
	return h.redisAddr
}

func (h *Hub) SetRedisAddr(addr string) {
	h.redisAddr = addr
}

func (h *Hub) RedisPrefix() string {
	return h.redisPrefix
}

func (h *Hub) SetRedisPrefix(prefix string) {
	h.redisPrefix = prefix
}

// Sealed tells if the messages are packed before they go to the relay.
func (h *Hub) Sealed() bool {
	return h.sealed
}

func (h *Hub) SetSealed(sealed bool) {
	h.sealed = sealed
}

func (h *Hub) PollAttempts() int {
	return h.pollAttempts
}

func (h *Hub) SetPollAttempts(n int) {
	h.pollAttempts = n
}

func (h *Hub) PollInterval() time.Duration {
	return h.pollInterval
}

func (h *Hub) SetPollInterval(d time.Duration) {
	h.pollInterval = d
}

func (h *Hub) BackoffKind() string {
	return h.backoffKind
}

func (h *Hub) SetBackoffKind(kind string) {
	h.backoffKind = kind
}

func (h *Hub) SchedulerInterval() time.Duration {
	return h.schedulerInterval
}

func (h *Hub) SetSchedulerInterval(d time.Duration) {
	h.schedulerInterval = d
}

func (h *Hub) MetricsAddr() string {
	return h.metricsAddr
}

func (h *Hub) SetMetricsAddr(addr string) {
	h.metricsAddr = addr
}

func (h *Hub) VersionInfo() string {
	return h.versionInfo
}

func (h *Hub) SetVersionInfo(info string) {
	h.versionInfo = info
}
