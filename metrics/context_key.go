package metrics

type contextKey string

func (c contextKey) String() string {
	return "compositorContextKey" + string(c)
}

var RetriesKey = contextKey("CompositorRetries")
