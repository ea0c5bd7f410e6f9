// Package jobs hosts the scheduled background work: re-dispatching orders
// that are still searching and recovering offers orphaned by a restart.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"dispatch/internal/modules/dispatch"
	"dispatch/internal/modules/order"
	"dispatch/internal/types"
)

const (
	retryBatchSize = 20
	// staleOfferAge is how long an offered order may sit without an active
	// negotiation before the job requeues it.
	staleOfferAge = 2 * time.Minute
)

// Dispatcher is the slice of the orchestrator the job drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID types.ID) dispatch.Result
}

// DispatchRetryJob periodically retries searching orders. An order the
// orchestrator reported as no-candidates stays searching and is picked up
// here once couriers appear nearby.
type DispatchRetryJob struct {
	store      *order.Store
	dispatcher Dispatcher
	cron       *cron.Cron
	log        *slog.Logger
	everySec   int
}

func NewDispatchRetryJob(store *order.Store, dispatcher Dispatcher, everySec int, log *slog.Logger) *DispatchRetryJob {
	if everySec <= 0 {
		everySec = 15
	}
	return &DispatchRetryJob{
		store:      store,
		dispatcher: dispatcher,
		cron:       cron.New(cron.WithSeconds()),
		log:        log.With("component", "dispatch_retry_job"),
		everySec:   everySec,
	}
}

func (j *DispatchRetryJob) Start() error {
	spec := fmt.Sprintf("@every %ds", j.everySec)
	_, err := j.cron.AddFunc(spec, j.tick)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("dispatch retry job started", "every_sec", j.everySec)
	return nil
}

func (j *DispatchRetryJob) Stop() {
	j.cron.Stop()
	j.log.Info("dispatch retry job stopped")
}

func (j *DispatchRetryJob) tick() {
	ctx := context.Background()

	j.requeueStaleOffers(ctx)

	ids, err := j.store.ListSearching(ctx, retryBatchSize)
	if err != nil {
		j.log.Error("listing searching orders failed", "error", err)
		return
	}
	for _, id := range ids {
		res := j.dispatcher.Dispatch(ctx, id)
		// No-candidates and overlapping-attempt outcomes are routine here.
		if res.Outcome == dispatch.OutcomeFailed &&
			res.Reason != dispatch.ReasonNoCandidates &&
			res.Reason != dispatch.ReasonConflict {
			j.log.Warn("retry dispatch failed",
				"order_id", id, "reason", res.Reason)
		}
	}
}

// requeueStaleOffers returns orphaned offered orders to searching so the
// next tick can dispatch them again.
func (j *DispatchRetryJob) requeueStaleOffers(ctx context.Context) {
	ids, err := j.store.ListStaleOffered(ctx, staleOfferAge, retryBatchSize)
	if err != nil {
		j.log.Error("listing stale offers failed", "error", err)
		return
	}
	for _, id := range ids {
		o, err := j.store.Get(ctx, id)
		if err != nil || o.Status != order.StatusOffered {
			continue
		}
		if ok, err := j.store.Requeue(ctx, id, o.StatusVersion); err != nil || !ok {
			continue
		}
		j.log.Info("requeued stale offered order", "order_id", id)
	}
}
