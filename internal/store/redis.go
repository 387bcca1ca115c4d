package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"support-chat/backend/internal/models"
)

const (
	msgKeyPrefix  = "chat:msg:"
	chatKeyPrefix = "chat:index:"
)

// Lua keeps check-then-mark atomic on the server, which is what makes
// SoftDelete idempotent-with-report and ClearChat's count exact.
var (
	saveScript = redis.NewScript(`
		local deleted = redis.call('HGET', KEYS[1], 'deleted')
		redis.call('HSET', KEYS[1], 'chatId', ARGV[1], 'from', ARGV[2], 'text', ARGV[3], 'ts', ARGV[4])
		if deleted ~= '1' then
			redis.call('HSET', KEYS[1], 'deleted', ARGV[5])
		end
		redis.call('ZADD', KEYS[2], tonumber(ARGV[4]), ARGV[6])
		return 1
	`)

	softDeleteScript = redis.NewScript(`
		if redis.call('EXISTS', KEYS[1]) == 1 then
			redis.call('HSET', KEYS[1], 'deleted', '1')
			return 1
		end
		return 0
	`)

	clearChatScript = redis.NewScript(`
		local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
		local count = 0
		for _, id in ipairs(ids) do
			local key = ARGV[1] .. id
			if redis.call('HGET', key, 'deleted') ~= '1' then
				redis.call('HSET', key, 'deleted', '1')
				count = count + 1
			end
		end
		return count
	`)
)

// Redis stores each message as a hash and indexes each chat as a sorted set
// scored by timestamp, so ordered retrieval is a range scan.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func msgKey(id string) string      { return msgKeyPrefix + id }
func chatKey(chatID string) string { return chatKeyPrefix + chatID }

func (r *Redis) Save(ctx context.Context, msg models.ChatMessage) error {
	deleted := "0"
	if msg.Deleted {
		deleted = "1"
	}
	return saveScript.Run(ctx, r.rdb,
		[]string{msgKey(msg.ID), chatKey(msg.ChatID)},
		msg.ChatID, msg.From, msg.Text, msg.Ts, deleted, msg.ID,
	).Err()
}

func (r *Redis) SoftDelete(ctx context.Context, messageID string) (bool, error) {
	n, err := softDeleteScript.Run(ctx, r.rdb, []string{msgKey(messageID)}).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) ClearChat(ctx context.Context, chatID string) (int, error) {
	return clearChatScript.Run(ctx, r.rdb, []string{chatKey(chatID)}, msgKeyPrefix).Int()
}

func (r *Redis) GetChat(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	ids, err := r.rdb.ZRange(ctx, chatKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, msgKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	msgs := make([]models.ChatMessage, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // index entry without a hash, nothing to return
		}
		ts, err := strconv.ParseInt(fields["ts"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("message %s: bad ts %q", ids[i], fields["ts"])
		}
		msgs = append(msgs, models.ChatMessage{
			ID:      ids[i],
			ChatID:  fields["chatId"],
			From:    fields["from"],
			Text:    fields["text"],
			Ts:      ts,
			Deleted: fields["deleted"] == "1",
		})
	}
	return msgs, nil
}
