package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tholdem/uniqn-sync/pkg/records"
	virtualID "github.com/tholdem/uniqn-sync/pkg/virtualID"
)

var ErrMissingEvent = errors.New("event id is required to materialize a virtual work log")

// StatusResult lists the work log documents written by SetStatus and the
// ids that failed, with the failure message.
type StatusResult struct {
	Updated []string          `json:"updated"`
	Failed  map[string]string `json:"failed"`
}

// WorkLogWriter applies manager edits to work log documents.
type WorkLogWriter struct {
	client *firestore.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewWorkLogWriter(client *firestore.Client, logger *zap.Logger) *WorkLogWriter {
	return &WorkLogWriter{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

type statusTarget struct {
	id    string
	docID string
	// seed is set for virtual ids and holds the fields of the document to
	// create when none exists yet.
	seed map[string]interface{}
}

// planTargets resolves work log ids to document ids, dropping duplicates.
// Ids that cannot be resolved are returned in failed with the reason. Only
// a virtual id without an event fails the whole batch.
func planTargets(eventID string, ids []string) (targets []statusTarget, failed map[string]string, err error) {
	seen := map[string]bool{}
	failed = map[string]string{}
	for _, id := range ids {
		t := statusTarget{id: id, docID: id}
		if virtualID.IsVirtual(id) {
			if eventID == "" {
				return nil, nil, ErrMissingEvent
			}
			staffID, date, err := virtualID.Decode(id)
			if err != nil {
				failed[id] = err.Error()
				continue
			}
			t.docID = virtualID.DocumentID(eventID, staffID, date)
			t.seed = map[string]interface{}{
				"id":      t.docID,
				"staffId": staffID,
				"eventId": eventID,
				"date":    date,
				"role":    "staff",
			}
		} else if id == "" {
			failed[id] = "empty work log id"
			continue
		}
		if seen[t.docID] {
			continue
		}
		seen[t.docID] = true
		targets = append(targets, t)
	}
	return targets, failed, nil
}

// statusUpdates returns the field updates for an existing work log.
// Checking in stamps the actual start, checking out the actual end (and the
// start when it was never recorded), and resetting clears both.
func statusUpdates(s records.WorkLogStatus, now time.Time, hasActualStart bool) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: string(s)},
		{Path: "updatedAt", Value: now},
	}
	switch s {
	case records.WorkLogCheckedIn:
		updates = append(updates, firestore.Update{Path: "actualStartTime", Value: now})
	case records.WorkLogCheckedOut:
		updates = append(updates, firestore.Update{Path: "actualEndTime", Value: now})
		if !hasActualStart {
			updates = append(updates, firestore.Update{Path: "actualStartTime", Value: now})
		}
	case records.WorkLogNotStarted:
		updates = append(updates,
			firestore.Update{Path: "actualStartTime", Value: nil},
			firestore.Update{Path: "actualEndTime", Value: nil},
		)
	}
	return updates
}

// newWorkLog returns the document created for a virtual work log.
func newWorkLog(seed map[string]interface{}, s records.WorkLogStatus, now time.Time) map[string]interface{} {
	doc := make(map[string]interface{}, len(seed)+5)
	for k, v := range seed {
		doc[k] = v
	}
	doc["status"] = string(s)
	doc["createdAt"] = now
	doc["updatedAt"] = now
	switch s {
	case records.WorkLogCheckedIn:
		doc["actualStartTime"] = now
	case records.WorkLogCheckedOut:
		doc["actualStartTime"] = now
		doc["actualEndTime"] = now
	}
	return doc
}

// SetStatus forces status on every listed work log. Transitions are not
// validated. Virtual ids create the work log document of eventID when it
// does not exist yet. Each document is written in its own transaction, so
// one failure does not roll back the others.
func (w *WorkLogWriter) SetStatus(ctx context.Context, eventID string, ids []string, s records.WorkLogStatus) (*StatusResult, error) {
	if _, ok := records.ParseWorkLogStatus(string(s)); !ok {
		return nil, xerrors.Errorf("unknown work log status %q", s)
	}
	targets, failed, err := planTargets(eventID, ids)
	if err != nil {
		return nil, err
	}
	for id, reason := range failed {
		w.logger.Warn("invalid work log id", zap.String("workLogId", id), zap.String("reason", reason))
	}

	result := &StatusResult{Updated: []string{}, Failed: failed}
	if len(targets) == 0 {
		return result, nil
	}
	col := w.client.Collection(string(records.CollectionWorkLogs))
	for _, t := range targets {
		ref := col.Doc(t.docID)
		err := w.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			now := w.now()
			snap, err := tx.Get(ref)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if snap != nil && snap.Exists() {
				hasStart := snap.Data()["actualStartTime"] != nil
				return tx.Update(ref, statusUpdates(s, now, hasStart))
			}
			if t.seed == nil {
				return xerrors.Errorf("work log %s does not exist", t.docID)
			}
			return tx.Create(ref, newWorkLog(t.seed, s, now))
		})
		if err != nil {
			w.logger.Warn("failed to set work log status",
				zap.String("workLogId", t.id),
				zap.String("documentId", t.docID),
				zap.Error(err))
			result.Failed[t.id] = err.Error()
			continue
		}
		result.Updated = append(result.Updated, t.docID)
	}
	return result, nil
}
