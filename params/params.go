package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	AttemptKeyPrefix    = "security:attempts:"   // failed attempt counters, keyed by "<type>:<identifier>"
	LockoutKeyPrefix    = "security:lockout:"    // lockout flags, keyed by "<type>:<identifier>"
	RateKeyPrefix       = "security:rate:"       // per-ip request rate counters
	SuspiciousKeyPrefix = "security:suspicious:" // per-ip suspicious request counters
	ErrorRateKeyPrefix  = "security:errors:"     // per-ip error response counters

	AttemptTypeLogin = "login" // default attempt type for the lockout manager

	DefaultMaxLoginAttempts    = 5               // failed attempts before lockout
	DefaultLoginLockoutTime    = 5 * time.Minute // lockout flag and attempt window TTL
	DefaultSuspiciousThreshold = 10              // suspicious requests per hour before POTENTIAL_ATTACK

	RateLimitWindow       = 1 * time.Minute // window for request rate counting
	RateLimitMaxRequests  = 30              // requests per minute before flagged
	SuspiciousCountWindow = 1 * time.Hour   // window for suspicious request counting
	ErrorRateWindow       = 1 * time.Hour   // window for error response counting
	ErrorRateMaxErrors    = 20              // error responses per hour before flagged

	SuspiciousIPFailureWindow = 1 * time.Hour // lookback for recent failures when flagging an IP
	SuspiciousIPFailureCount  = 5             // failures within the window that mark an IP suspicious
	SuspiciousAttemptCount    = 3             // prior failures that mark a login attempt suspicious

	LongRunningSessionAge = 8 * time.Hour  // sessions older than this are flagged long-running
	InactiveSessionMaxAge = 24 * time.Hour // inactivity before cleanup closes a session
	SecuritySummaryWindow = 24 * time.Hour // default dashboard lookback
	SummaryTopOffenders   = 10             // offenders listed per summary

	RelatedMaxResults      = 5  // related tickets returned per lookup
	RelatedCategoryLimit   = 10 // candidates per category match
	RelatedKeywordLimit    = 5  // candidates per keyword
	RelatedKeywordCount    = 5  // keywords considered per ticket
	RelatedCreatorLimit    = 5  // candidates per creator-recency match
	RelatedCreatorLookback = 30 * 24 * time.Hour
	RelatedMinKeywordLen   = 4   // tokens shorter than this are dropped
	JaccardThreshold       = 0.3 // fallback scorer keeps strictly greater scores

	MailQueueSize      = 256             // pending mail before enqueue drops
	MailSendDelay      = 1 * time.Second // pause between sends, provider rate limits
	MailWorkerStopWait = 5 * time.Second

	HealthCheckServerAddr = ":3001"
)
