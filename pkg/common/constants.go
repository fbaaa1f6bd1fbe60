package common

import "time"

const (
	// RedisKeyPipelineRunLock guards the pipeline against concurrent runs.
	// The checkpoint and the panel table have a single-writer contract.
	RedisKeyPipelineRunLock = "sentiment-panel:pipeline:run-lock"

	// PipelineRunLockTTL bounds how long a crashed run can hold the lock.
	PipelineRunLockTTL = 2 * time.Hour
)
