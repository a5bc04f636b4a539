package http

const (
	Ping    = "Ping"
	Version = "Version"

	SubmitTask = "SubmitTask"
	JobStatus  = "JobStatus"
	AliasState = "AliasState"
	GateStatus = "GateStatus"
)
