// Package redisrelay is the store-and-forward relay on Redis. Each mailbox
// is a list of pending message UIDs and every message is its own key which
// expires with the TTL. Consumed messages move to the owner's reviewed list
// which keeps only the latest ones.
package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/golang/glog"
	backend "github.com/redis/go-redis/v9"
)

// Relay implements trans.Transport using Redis.
type Relay struct {
	client    *backend.Client
	prefix    string
	ttl       time.Duration
	retention time.Duration
	keep      int64
}

var _ trans.Transport = (*Relay)(nil)

type Option func(*Relay)

// WithTTL sets the expiration of the messages.
func WithTTL(ttl time.Duration) Option {
	return func(r *Relay) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix of the relay.
func WithPrefix(prefix string) Option {
	return func(r *Relay) {
		r.prefix = prefix
	}
}

// WithRetention sets how long the consumed messages are kept. Zero keeps
// them as long as the TTL.
func WithRetention(d time.Duration) Option {
	return func(r *Relay) {
		r.retention = d
	}
}

// WithReviewed sets how many consumed messages an owner's reviewed list
// keeps.
func WithReviewed(n int) Option {
	return func(r *Relay) {
		r.keep = int64(n)
	}
}

const (
	defaultPrefix    = "exchange:relay:"
	defaultRetention = time.Hour
	defaultReviewed  = 256
)

// New creates a new Redis relay with options.
func New(address string, opts ...Option) *Relay {
	rdb := backend.NewClient(&backend.Options{
		Addr: address,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis relay from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Relay {
	r := &Relay{
		client:    client,
		prefix:    defaultPrefix,
		ttl:       0, // No expiration by default
		retention: defaultRetention,
		keep:      defaultReviewed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) boxKey(owner string) string {
	return r.prefix + "box:" + owner
}

func (r *Relay) reviewedKey(owner string) string {
	return r.prefix + "reviewed:" + owner
}

func (r *Relay) msgKey(uid string) string {
	return r.prefix + "msg:" + uid
}

func (r *Relay) ownersKey() string {
	return r.prefix + "owners"
}

func (r *Relay) Close() error {
	return r.client.Close()
}

func (r *Relay) Send(ctx context.Context, to string, msg trans.Message) error {
	if to == "" {
		return trans.ErrNoOwner
	}
	if msg.UID == "" {
		msg.UID = utils.UUID()
	}
	msg.Owner = to
	msg.Status = trans.StatusReceived

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.msgKey(msg.UID), dto.ToJSONBytes(&msg), r.ttl)
	pipe.RPush(ctx, r.boxKey(to), msg.UID)
	pipe.SAdd(ctx, r.ownersKey(), to)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to send to redis: %w", err)
	}
	glog.V(5).Infof("redis relay: %s -> %s", msg.UID, to)
	return nil
}

func (r *Relay) Download(ctx context.Context, filter trans.Filter) ([]trans.Message, error) {
	owners := filter.Owners
	if len(owners) == 0 {
		var err error
		owners, err = r.client.SMembers(ctx, r.ownersKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list mailboxes: %w", err)
		}
	}

	msgs := make([]trans.Message, 0)
	for _, owner := range owners {
		lists := []string{r.boxKey(owner)}
		if filter.Status != trans.StatusReceived {
			lists = append(lists, r.reviewedKey(owner))
		}
		for _, list := range lists {
			found, err := r.load(ctx, list, filter)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, found...)
		}
	}
	return msgs, nil
}

// load reads the messages of the UID list. Expired UIDs are dropped from the
// list.
func (r *Relay) load(ctx context.Context, list string, filter trans.Filter) ([]trans.Message, error) {
	uids, err := r.client.LRange(ctx, list, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(uids))
	for i, uid := range uids {
		keys[i] = r.msgKey(uid)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	var msgs []trans.Message
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			if err := r.client.LRem(ctx, list, 0, uids[i]).Err(); err != nil {
				glog.Warningln("cannot drop expired message", uids[i], err)
			}
			continue
		}
		var m trans.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			glog.Warningln("skipping corrupted message", uids[i], err)
			continue
		}
		if filter.Match(&m) {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// MarkConsumed moves the messages from the mailbox to the reviewed list.
func (r *Relay) MarkConsumed(ctx context.Context, owner string, uids []string) error {
	retention := r.retention
	if retention == 0 {
		retention = backend.KeepTTL
	}
	for _, uid := range uids {
		val, err := r.client.Get(ctx, r.msgKey(uid)).Result()
		if err == backend.Nil {
			glog.V(3).Infoln("consumed message already gone:", uid)
			r.client.LRem(ctx, r.boxKey(owner), 0, uid)
			continue
		} else if err != nil {
			return fmt.Errorf("failed to get from redis: %w", err)
		}
		var m trans.Message
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			return fmt.Errorf("failed to unmarshal message: %w", err)
		}
		if m.Owner != owner {
			return fmt.Errorf("%w: %s doesn't own %s", trans.ErrUnknownOwner, owner, uid)
		}
		if m.Status == trans.StatusReviewed {
			continue
		}
		m.Status = trans.StatusReviewed

		pipe := r.client.TxPipeline()
		pipe.Set(ctx, r.msgKey(uid), dto.ToJSONBytes(&m), retention)
		pipe.LRem(ctx, r.boxKey(owner), 0, uid)
		pipe.RPush(ctx, r.reviewedKey(owner), uid)
		pipe.LTrim(ctx, r.reviewedKey(owner), -r.keep, -1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to update message: %w", err)
		}
	}
	return nil
}
