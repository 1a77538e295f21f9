package redis

import goredis "github.com/redis/go-redis/v9"

// Each state transition is a single server-side script, so the read, the
// transition decision, and every write to the queue and the record happen
// with nothing interleaving. Scripts return either a status token or the
// full record as a flat field/value array.

// enqueueScript inserts the record and appends its id to the pending
// list as one unit.
//
// KEYS[1] job hash, KEYS[2] pending list, KEYS[3] job id set
// ARGV[1] job id, ARGV[2..] hash field/value pairs
// Returns 1 on success, 0 when the id already exists.
var enqueueScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

// claimScript pops ids off the pending list until it finds a record that
// is still pending, flips it to running, and returns the full record.
// Stale ids (records cancelled after enqueue, or swept) are discarded.
//
// The job hash keys are built from popped ids inside the script and so
// cannot be declared in KEYS. On Redis Cluster the store's keys must
// share one slot via a hash tag in the prefix; see the package doc.
//
// KEYS[1] pending list, ARGV[1] key prefix, ARGV[2] now (RFC3339Nano)
// Returns the claimed record as a flat array, or false when nothing is
// claimable.
var claimScript = goredis.NewScript(`
while true do
  local id = redis.call('LPOP', KEYS[1])
  if not id then
    return false
  end
  local key = ARGV[1] .. 'job:' .. id
  if redis.call('HGET', key, 'status') == 'pending' then
    redis.call('HSET', key,
      'status', 'running',
      'started_at', ARGV[2],
      'updated_at', ARGV[2])
    redis.call('HINCRBY', key, 'version', 1)
    return redis.call('HGETALL', key)
  end
end
`)

// cancelScript applies the cancellation state machine.
//
// KEYS[1] job hash, KEYS[2] pending list
// ARGV[1] job id, ARGV[2] now (RFC3339Nano)
// Returns a cancel outcome token.
var cancelScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'not_found'
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'cancelled' then
  return 'already_cancelled'
end
if status == 'succeeded' or status == 'failed' then
  return 'already_completed'
end
redis.call('HSET', KEYS[1],
  'status', 'cancelled',
  'cancelled_at', ARGV[2],
  'updated_at', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'version', 1)
if status == 'pending' then
  redis.call('LREM', KEYS[2], 1, ARGV[1])
  return 'cancelled_from_queue'
end
return 'cancelled_running'
`)

// completeScript records a terminal outcome. A record cancelled while
// running keeps its status; only the output is stored.
//
// KEYS[1] job hash
// ARGV[1] terminal status (succeeded|failed), ARGV[2] output,
// ARGV[3] now (RFC3339Nano)
// Returns the record as a flat array, or a token ('not_found',
// 'invalid') on rejection.
var completeScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'not_found'
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'cancelled' then
  redis.call('HSET', KEYS[1], 'output', ARGV[2], 'updated_at', ARGV[3])
  return redis.call('HGETALL', KEYS[1])
end
if status ~= 'running' then
  return 'invalid'
end
redis.call('HSET', KEYS[1],
  'status', ARGV[1],
  'finished_at', ARGV[3],
  'output', ARGV[2],
  'updated_at', ARGV[3])
redis.call('HINCRBY', KEYS[1], 'version', 1)
return redis.call('HGETALL', KEYS[1])
`)
