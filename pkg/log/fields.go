package log

const (
	// HTTP
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor, set by pkg/middleware
	FieldUserID   = "user_id"
	FieldUsername = "username"

	FieldService = "service"

	// Live session
	FieldConnectionID = "connection_id"
	FieldSessionID    = "session_id"
	FieldMsgType      = "msg_type"
	FieldTarget       = "target"
	FieldReason       = "reason"

	// gRPC
	FieldGRPCMethod = "grpc_method"
	FieldGRPCCode   = "grpc_code"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
