package instance

import "github.com/angelmondragon/branchledger/pkg/env"

// GetID identifies the running process in logs. An explicit instance id wins
// over platform-provided names.
func GetID() string {
	return env.FirstOf("local", "BRANCHLEDGER_INSTANCE_ID", "DYNO", "WORKER_ID", "HOSTNAME")
}
