package redisstore

import "github.com/redis/go-redis/v9"

// Key layout under prefix P:
//
//	P:task:<id>        hash with the task fields, times in unix ms
//	P:pending:<queue>  zset id -> ms the task becomes visible
//	P:active:<queue>   zset id -> ms the lease expires
//	P:unique           hash unique key -> id
//	P:dead             list of JSON dead letters, newest first
//
// Scripts build task keys from the prefix, so the store needs a single-node
// Redis or a cluster hash tag in the prefix.

// createScript: KEYS[1]=task, KEYS[2]=pending, KEYS[3]=unique
// ARGV: prefix, id, unique_key, scheduled_ms, then field/value pairs.
var createScript = redis.NewScript(`
local prefix, id, ukey, score = ARGV[1], ARGV[2], ARGV[3], ARGV[4]
if ukey ~= '' then
  local existing = redis.call('HGET', KEYS[3], ukey)
  if existing then
    local st = redis.call('HGET', prefix .. ':task:' .. existing, 'status')
    if st == 'pending' or st == 'active' then
      return {'DUP', existing}
    end
  end
end
if redis.call('EXISTS', KEYS[1]) == 1 then
  return {'EXISTS'}
end
local fields = {}
for i = 5, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call('HSET', KEYS[1], unpack(fields))
redis.call('ZADD', KEYS[2], score, id)
if ukey ~= '' then
  redis.call('HSET', KEYS[3], ukey, id)
end
return {'OK'}
`)

// claimScript: ARGV: prefix, now_ms, lease_ms, worker_id, queues...
// Requeues expired leases first, then takes the earliest visible task.
var claimScript = redis.NewScript(`
local prefix, now, lease, worker = ARGV[1], tonumber(ARGV[2]), tonumber(ARGV[3]), ARGV[4]
local best_id, best_score, best_queue
for i = 5, #ARGV do
  local q = ARGV[i]
  local pending = prefix .. ':pending:' .. q
  local active = prefix .. ':active:' .. q
  local expired = redis.call('ZRANGEBYSCORE', active, '-inf', '(' .. now, 'WITHSCORES')
  for j = 1, #expired, 2 do
    local tid, expired_at = expired[j], expired[j + 1]
    redis.call('ZREM', active, tid)
    redis.call('ZADD', pending, expired_at, tid)
    redis.call('HSET', prefix .. ':task:' .. tid, 'status', 'pending', 'scheduled_at', expired_at)
    redis.call('HDEL', prefix .. ':task:' .. tid, 'locked_until', 'locked_by')
  end
  local head = redis.call('ZRANGEBYSCORE', pending, '-inf', now, 'WITHSCORES', 'LIMIT', 0, 1)
  if #head > 0 then
    local score = tonumber(head[2])
    if best_score == nil or score < best_score then
      best_id, best_score, best_queue = head[1], score, q
    end
  end
end
if best_id == nil then
  return false
end
local lease_end = now + lease
local key = prefix .. ':task:' .. best_id
redis.call('ZREM', prefix .. ':pending:' .. best_queue, best_id)
redis.call('ZADD', prefix .. ':active:' .. best_queue, lease_end, best_id)
redis.call('HSET', key, 'status', 'active', 'locked_until', string.format('%.0f', lease_end), 'locked_by', worker)
return redis.call('HGETALL', key)
`)

// ownerCheck is shared by the fenced scripts. Expects key and worker in scope.
const ownerCheck = `
if redis.call('EXISTS', key) == 0 then
  return 'NOT_FOUND'
end
local fields = redis.call('HMGET', key, 'status', 'locked_by', 'queue')
if fields[1] ~= 'active' or fields[2] ~= worker then
  return 'LEASE_LOST'
end
local queue = fields[3]
`

// completeScript: KEYS[1]=task; ARGV: prefix, worker, now_ms
var completeScript = redis.NewScript(`
local key, prefix, worker, now = KEYS[1], ARGV[1], ARGV[2], ARGV[3]
` + ownerCheck + `
redis.call('ZREM', prefix .. ':active:' .. queue, redis.call('HGET', key, 'id'))
redis.call('HSET', key, 'status', 'completed', 'processed_at', now)
redis.call('HDEL', key, 'locked_until', 'locked_by')
return 'OK'
`)

// failScript: KEYS[1]=task, KEYS[2]=dead list
// ARGV: prefix, worker, now_ms, error, retry_at_ms, dead_letter_id, kill ('1' or '0')
var failScript = redis.NewScript(`
local key, prefix, worker, now = KEYS[1], ARGV[1], ARGV[2], ARGV[3]
local errmsg, retry_at, dl_id, kill = ARGV[4], ARGV[5], ARGV[6], ARGV[7]
` + ownerCheck + `
local id = redis.call('HGET', key, 'id')
local attempt = tonumber(redis.call('HGET', key, 'attempt')) + 1
local max_attempts = tonumber(redis.call('HGET', key, 'max_attempts'))
redis.call('ZREM', prefix .. ':active:' .. queue, id)
redis.call('HDEL', key, 'locked_until', 'locked_by')
redis.call('HSET', key, 'attempt', attempt, 'error', errmsg)
if kill == '1' or attempt >= max_attempts then
  redis.call('HSET', key, 'status', 'failed-exhausted', 'processed_at', now)
  redis.call('LPUSH', KEYS[2], cjson.encode({
    id = dl_id,
    task_id = id,
    queue = queue,
    task_name = redis.call('HGET', key, 'task_name'),
    payload = redis.call('HGET', key, 'payload'),
    error = errmsg,
    attempt = attempt,
    failed_at = tonumber(now)
  }))
  return 'failed-exhausted'
end
redis.call('HSET', key, 'status', 'pending', 'scheduled_at', retry_at)
redis.call('ZADD', prefix .. ':pending:' .. queue, retry_at, id)
return 'pending'
`)

// extendScript: KEYS[1]=task; ARGV: prefix, worker, lease_end_ms
var extendScript = redis.NewScript(`
local key, prefix, worker, lease_end = KEYS[1], ARGV[1], ARGV[2], ARGV[3]
` + ownerCheck + `
redis.call('HSET', key, 'locked_until', lease_end)
redis.call('ZADD', prefix .. ':active:' .. queue, lease_end, redis.call('HGET', key, 'id'))
return 'OK'
`)

// cancelScript: KEYS[1]=task; ARGV: prefix, now_ms
var cancelScript = redis.NewScript(`
local key, prefix, now = KEYS[1], ARGV[1], ARGV[2]
if redis.call('EXISTS', key) == 0 then
  return 'NOT_FOUND'
end
local fields = redis.call('HMGET', key, 'status', 'queue', 'id')
if fields[1] ~= 'pending' then
  return fields[1]
end
redis.call('ZREM', prefix .. ':pending:' .. fields[2], fields[3])
redis.call('HSET', key, 'status', 'cancelled', 'processed_at', now)
return 'OK'
`)
