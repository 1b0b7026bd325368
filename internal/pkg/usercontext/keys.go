package usercontext

// Locals keys shared by middlewares and controllers
const (
	KeyCaller    = "CALLER_CONTEXT"
	KeyRequestID = "requestid"
)

// Request headers carrying caller identity
const (
	HeaderAPIKey  = "X-API-Key"
	HeaderActorID = "X-Actor-ID"
)
