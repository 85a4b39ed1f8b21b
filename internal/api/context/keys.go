package context

type Key string

const (
	Claims    Key = "claims"
	Params    Key = "params"
	RequestID Key = "request_id"
	ClientIP  Key = "client_ip"
)
