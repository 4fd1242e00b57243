package middlewares

// gin context keys. The authenticated user itself travels on the request
// context via actorctx.
const (
	CtxRequestID = "request_id"
)
