package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tholdem/uniqn-sync/pkg/query"
	"github.com/tholdem/uniqn-sync/pkg/records"
)

var supportedOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"in": true, "not-in": true, "array-contains": true, "array-contains-any": true,
}

// Listener opens Firestore snapshot listeners for query specs.
type Listener struct {
	client *firestore.Client
	logger *zap.Logger
}

func NewListener(client *firestore.Client, logger *zap.Logger) *Listener {
	return &Listener{
		client: client,
		logger: logger,
	}
}

// Listen runs spec as a live query. onSnapshot receives the full result set
// on every change; onError is called at most once and ends the listener.
// Both callbacks run on the listener's own goroutine. The returned stop is
// idempotent and safe to call from any goroutine.
func (l *Listener) Listen(ctx context.Context, spec query.Spec, onSnapshot func([]records.Document), onError func(error)) (func(), error) {
	if err := checkSpec(spec); err != nil {
		return nil, err
	}
	q := l.build(spec)

	ctx, cancel := context.WithCancel(ctx)
	it := q.Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err == nil {
				var docs []*firestore.DocumentSnapshot
				docs, err = snap.Documents.GetAll()
				if err == nil {
					onSnapshot(toDocuments(docs))
					continue
				}
			}
			if stopped(ctx, err) {
				l.logger.Debug("listener stopped", zap.String("collection", string(spec.Collection)))
				return
			}
			onError(newBackendError(spec.Collection, err))
			return
		}
	}()

	return cancel, nil
}

func (l *Listener) build(spec query.Spec) firestore.Query {
	q := l.client.Collection(string(spec.Collection)).Query
	for _, f := range spec.Filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	if spec.OrderBy != "" {
		dir := firestore.Desc
		if spec.Direction == query.Asc {
			dir = firestore.Asc
		}
		q = q.OrderBy(spec.OrderBy, dir)
	}
	if spec.Limit > 0 {
		q = q.Limit(spec.Limit)
	}
	return q
}

// checkSpec rejects specs Firestore would only fail on asynchronously.
func checkSpec(spec query.Spec) error {
	if _, err := records.ParseCollection(string(spec.Collection)); err != nil {
		return fmt.Errorf("%w: %q", err, spec.Collection)
	}
	for _, f := range spec.Filters {
		if f.Field == "" {
			return fmt.Errorf("%s: filter without field", spec.Collection)
		}
		if !supportedOps[f.Op] {
			return fmt.Errorf("%s: unsupported operator %q on %s", spec.Collection, f.Op, f.Field)
		}
	}
	if spec.Limit < 0 {
		return fmt.Errorf("%s: negative limit %d", spec.Collection, spec.Limit)
	}
	switch spec.Direction {
	case "", query.Asc, query.Desc:
	default:
		return fmt.Errorf("%s: unknown direction %q", spec.Collection, spec.Direction)
	}
	return nil
}

func stopped(ctx context.Context, err error) bool {
	if errors.Is(err, iterator.Done) || ctx.Err() != nil {
		return true
	}
	return status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled)
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []records.Document {
	out := make([]records.Document, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, records.Document{ID: s.Ref.ID, Data: s.Data()})
	}
	return out
}
