package scoreboard

import "github.com/redis/go-redis/v9"

// recordActivityScript upserts an entity's last-event time without ever moving
// it backwards, and bumps the entity's burst counter.
//
// KEYS[1] activity hash, KEYS[2] burst counter
// ARGV[1] entity, ARGV[2] event time ms, ARGV[3] burst window ms (0 disables)
// Returns {previous_ms, burst_count}.
var recordActivityScript = redis.NewScript(`
local prev = redis.call('HGET', KEYS[1], ARGV[1])
local now = tonumber(ARGV[2])
if (not prev) or tonumber(prev) < now then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
local n = 0
if tonumber(ARGV[3]) > 0 then
  n = redis.call('INCR', KEYS[2])
  if n == 1 then
    redis.call('PEXPIRE', KEYS[2], ARGV[3])
  end
end
return {prev or '0', n}
`)

// archiveScript writes an archive receipt and, only if the receipt is new,
// adds the amount to the owning group's total.
//
// KEYS[1] receipt hash, KEYS[2] groups hash
// ARGV[1] entity, ARGV[2] group ('' for none), ARGV[3] amount, ARGV[4] retention ms
// Returns 1 when archived now, 0 when the invocation already archived the entity.
var archiveScript = redis.NewScript(`
local added = redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[3] .. '|' .. ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
if added == 1 and ARGV[2] ~= '' and tonumber(ARGV[3]) > 0 then
  redis.call('HINCRBY', KEYS[2], ARGV[2], ARGV[3])
end
return added
`)

// clearArchivedScript subtracts exactly the archived amount per entity from
// the scores ZSET, once per invocation. A score that would reach zero or go
// negative is removed.
//
// KEYS[1] scores zset, KEYS[2] cleared set
// ARGV[1] retention ms, then pairs of (entity, amount)
// Returns the number of entities cleared by this call.
var clearArchivedScript = redis.NewScript(`
local cleared = 0
for i = 2, #ARGV, 2 do
  local id = ARGV[i]
  local amount = tonumber(ARGV[i + 1])
  if redis.call('SADD', KEYS[2], id) == 1 then
    local current = tonumber(redis.call('ZSCORE', KEYS[1], id) or '0')
    if current - amount <= 0 then
      redis.call('ZREM', KEYS[1], id)
    else
      redis.call('ZINCRBY', KEYS[1], tostring(-amount), id)
    end
    cleared = cleared + 1
  end
end
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return cleared
`)

// clearGroupsScript subtracts exactly the announced amount per group from the
// groups hash, once per invocation. A group never drops below zero and stays
// in the hash, so later comparisons still report it.
//
// KEYS[1] groups hash, KEYS[2] cleared set
// ARGV[1] retention ms, then pairs of (group, amount)
// Returns the number of groups cleared by this call.
var clearGroupsScript = redis.NewScript(`
local cleared = 0
for i = 2, #ARGV, 2 do
  local group = ARGV[i]
  local amount = tonumber(ARGV[i + 1])
  if redis.call('SADD', KEYS[2], group) == 1 then
    local current = tonumber(redis.call('HGET', KEYS[1], group) or '0')
    if current - amount <= 0 then
      redis.call('HSET', KEYS[1], group, 0)
    else
      redis.call('HINCRBY', KEYS[1], group, tostring(-amount))
    end
    cleared = cleared + 1
  end
end
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return cleared
`)
