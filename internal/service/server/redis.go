package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/service/redis"
	"relay_chat/internal/utils/log"
)

type (
	// RedisStorage keeps aliases and inboxes in Redis so that several relay
	// processes can share them. Notifications go over pub/sub.
	//
	// Keys:
	//	alias:<alias>    owner username
	//	aliases:<user>   set of aliases owned by user
	//	inbox:<user>     hash of message id -> type byte + payload
	//	msgid            message id counter
	//	notify:<user>    pub/sub channel
	RedisStorage struct {
		redisService *redis.RedisService
	}
)

var _ Storage = (*RedisStorage)(nil)

const messageIDKey = "msgid"

func NewRedisStorage(redisSvc *redis.RedisService) *RedisStorage {
	return &RedisStorage{redisService: redisSvc}
}

func aliasKey(alias string) string   { return "alias:" + alias }
func aliasesKey(owner string) string { return "aliases:" + owner }
func inboxKey(user string) string    { return "inbox:" + user }
func notifyKey(user string) string   { return "notify:" + user }

func (s *RedisStorage) CreateAlias(ctx context.Context, owner, alias string) error {
	ok, err := s.redisService.SetNX(ctx, aliasKey(alias), owner)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrAliasExists
	}
	return s.redisService.SAdd(ctx, aliasesKey(owner), alias)
}

func (s *RedisStorage) DeleteAlias(ctx context.Context, owner, alias string) error {
	current, err := s.AliasOwner(ctx, alias)
	if err != nil {
		return err
	}
	if current != owner {
		return errs.ErrAliasNotFound
	}
	if err := s.redisService.Del(ctx, aliasKey(alias)); err != nil {
		return err
	}
	return s.redisService.SRem(ctx, aliasesKey(owner), alias)
}

func (s *RedisStorage) Aliases(ctx context.Context, owner string) ([]string, error) {
	aliases, err := s.redisService.SMembers(ctx, aliasesKey(owner))
	if err != nil {
		return nil, err
	}
	sort.Strings(aliases)
	return aliases, nil
}

func (s *RedisStorage) AliasOwner(ctx context.Context, alias string) (string, error) {
	owner, err := s.redisService.Get(ctx, aliasKey(alias))
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrAliasNotFound
	}
	return owner, err
}

func (s *RedisStorage) Enqueue(ctx context.Context, recipient string, typ model.MessageType, data []byte) (int64, error) {
	id, err := s.redisService.Incr(ctx, messageIDKey)
	if err != nil {
		return 0, err
	}
	value := append([]byte{byte(typ)}, data...)
	if err := s.redisService.HSet(ctx, inboxKey(recipient), strconv.FormatInt(id, 10), value); err != nil {
		return 0, err
	}
	if err := s.redisService.Publish(ctx, notifyKey(recipient), id); err != nil {
		log.Warn("publish notification failed", zap.String("user", recipient), zap.Error(err))
	}
	return id, nil
}

func (s *RedisStorage) Headers(ctx context.Context, recipient string) ([]model.MessageHeader, error) {
	all, err := s.redisService.HGetAll(ctx, inboxKey(recipient))
	if err != nil {
		return nil, err
	}
	headers := make([]model.MessageHeader, 0, len(all))
	for field, value := range all {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil || len(value) == 0 {
			log.Warn("skipping corrupt inbox entry", zap.String("user", recipient), zap.String("field", field))
			continue
		}
		headers = append(headers, model.MessageHeader{
			ID:   id,
			Size: int64(len(value) - 1),
			Type: model.MessageType(value[0]),
		})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].ID < headers[j].ID })
	return headers, nil
}

func (s *RedisStorage) Message(ctx context.Context, recipient string, id int64) ([]byte, error) {
	value, err := s.redisService.HGet(ctx, inboxKey(recipient), strconv.FormatInt(id, 10))
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("message %d: empty entry: %w", id, errs.ErrMessageNotFound)
	}
	return []byte(value[1:]), nil
}

func (s *RedisStorage) DeleteMessage(ctx context.Context, recipient string, id int64) error {
	n, err := s.redisService.HDel(ctx, inboxKey(recipient), strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrMessageNotFound
	}
	return nil
}

func (s *RedisStorage) Subscribe(ctx context.Context, recipient string) (<-chan struct{}, func()) {
	out := make(chan struct{}, 1)
	payloads, closeSub, err := s.redisService.Subscribe(ctx, notifyKey(recipient))
	if err != nil {
		log.Warn("subscribe failed, notifications disabled", zap.String("user", recipient), zap.Error(err))
		return out, func() {}
	}
	go func() {
		for range payloads {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, func() {
		if err := closeSub(); err != nil {
			log.Debug("close subscription failed", zap.String("user", recipient), zap.Error(err))
		}
	}
}
