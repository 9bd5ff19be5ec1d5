package batch

import "time"

// WorkerPolicy controls how a Worker polls the queue.
type WorkerPolicy struct {
	PollInterval      time.Duration
	ClaimBlock        time.Duration
	HeartbeatInterval time.Duration
}

func DefaultWorkerPolicy() WorkerPolicy {
	return WorkerPolicy{
		PollInterval:      500 * time.Millisecond,
		ClaimBlock:        2 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// NormalizeWorkerPolicy fills unset intervals. A zero ClaimBlock is kept and
// means a non-blocking claim.
func NormalizeWorkerPolicy(policy WorkerPolicy) WorkerPolicy {
	if policy.PollInterval <= 0 {
		policy.PollInterval = 500 * time.Millisecond
	}
	if policy.ClaimBlock < 0 {
		policy.ClaimBlock = 0
	}
	if policy.HeartbeatInterval <= 0 {
		policy.HeartbeatInterval = 30 * time.Second
	}
	return policy
}
