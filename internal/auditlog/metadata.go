package auditlog

import "context"

// Metadata travels with a context so that entries written deep in the
// queue know who started the work.
type Metadata struct {
	Trigger  string
	OrderRef string
}

type metadataKey struct{}

// WithMetadata attaches audit metadata to a context. Empty fields keep
// the values of metadata already on ctx.
func WithMetadata(ctx context.Context, meta Metadata) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing, _ := ctx.Value(metadataKey{}).(Metadata)
	merged := Metadata{
		Trigger:  pick(meta.Trigger, existing.Trigger),
		OrderRef: pick(meta.OrderRef, existing.OrderRef),
	}
	return context.WithValue(ctx, metadataKey{}, merged)
}

// WithTrigger is shorthand for WithMetadata with only Trigger set.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return WithMetadata(ctx, Metadata{Trigger: trigger})
}

// MetadataFromContext returns audit metadata stored in the context.
func MetadataFromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return Metadata{}
	}
	meta, _ := ctx.Value(metadataKey{}).(Metadata)
	return meta
}

func pick(next, fallback string) string {
	if next != "" {
		return next
	}
	return fallback
}
