package redis

// Redis key naming conventions for execq data.
// All keys are prefixed with "execq:" to avoid collisions.

const keyPrefix = "execq:"

// jobKey returns the key for a job record Hash: execq:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// pendingKey is the List holding pending job ids in FIFO order
// (RPUSH on submit, LPOP on claim).
const pendingKey = keyPrefix + "pending"

// jobIDsKey is the Set tracking all job ids for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// historyKey returns the key for a history snapshot Hash: execq:history:{id}
func historyKey(id string) string { return keyPrefix + "history:" + id }
