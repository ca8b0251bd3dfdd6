package redis

const (
	// appendEventScript pushes one record and bumps the append counter together
	appendEventScript = `
local events_key = KEYS[1]    -- focuswatch:events
local seq_key = KEYS[2]       -- focuswatch:events:seq

local record = ARGV[1]

redis.call('RPUSH', events_key, record)
return redis.call('INCR', seq_key)
`
)
