// Package sweeper reclaims backup records whose node never came back.
//
// A backup record is deliberately left behind when a node is deleted, so a
// recreated node can pick its labels up again. When no node ever reappears
// the record is an orphan, and without the sweeper orphans accumulate
// forever. The sweeper runs on a cron schedule, only under leader election,
// and removes records that belong to no current node and have not been
// rewritten within the retention window.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	controllermetrics "github.com/dc-tec/node-label-preserver/internal/controller"
	"github.com/dc-tec/node-label-preserver/internal/logging"
	"github.com/dc-tec/node-label-preserver/internal/preserver"
	"github.com/dc-tec/node-label-preserver/internal/store"
)

// Parser is a cron parser configured for standard 5-field cron expressions.
// It uses the standard minute, hour, day-of-month, month, day-of-week format.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := Parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// Sweeper deletes orphaned backup records on a schedule. It implements
// manager.Runnable and runs only on the elected leader.
type Sweeper struct {
	client    client.Client
	store     store.Client
	schedule  cron.Schedule
	retention time.Duration
	clock     clock.PassiveClock
}

// New creates a Sweeper firing per the given cron expression. Records for
// absent nodes are kept until they have gone unwritten for the retention
// window; a retention of zero sweeps them on the next run.
func New(kubeClient client.Client, backupStore store.Client, scheduleExpr string, retention time.Duration) (*Sweeper, error) {
	schedule, err := ParseSchedule(scheduleExpr)
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		client:    kubeClient,
		store:     backupStore,
		schedule:  schedule,
		retention: retention,
		clock:     clock.RealClock{},
	}, nil
}

// NeedLeaderElection ensures only one replica sweeps.
func (s *Sweeper) NeedLeaderElection() bool {
	return true
}

// Start runs the sweep loop until the context is cancelled. Sweep failures
// are logged and retried on the next scheduled run rather than stopping the
// manager.
func (s *Sweeper) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithValues("controller", "sweeper")
	logger.Info("Starting orphaned record sweeper", "retention", s.retention.String())

	for {
		next := s.schedule.Next(s.clock.Now())
		timer := time.NewTimer(next.Sub(s.clock.Now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := s.SweepOnce(ctx); err != nil {
			logger.Error(err, "Sweep run failed; retrying on the next scheduled run")
		}
	}
}

// SweepOnce performs a single sweep over the store.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	logger := log.FromContext(ctx).WithValues("controller", "sweeper")

	nodeList := &corev1.NodeList{}
	if err := s.client.List(ctx, nodeList); err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	liveKeys := make(map[string]struct{}, len(nodeList.Items))
	for i := range nodeList.Items {
		liveKeys[preserver.BackupKey(nodeList.Items[i].Name)] = struct{}{}
	}

	infos, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backup records: %w", err)
	}

	cutoff := s.clock.Now().Add(-s.retention)

	var sweepErrs []error
	for _, info := range infos {
		if _, live := liveKeys[info.Key]; live {
			continue
		}
		// A fresh orphan may belong to a node mid-recreation; leave it until
		// the retention window has passed without a rewrite.
		if info.ModTime.After(cutoff) {
			continue
		}

		if err := s.sweepRecord(ctx, logger, info); err != nil {
			sweepErrs = append(sweepErrs, err)
		}
	}

	return errors.Join(sweepErrs...)
}

func (s *Sweeper) sweepRecord(ctx context.Context, logger logr.Logger, info store.RecordInfo) error {
	// Read the record first so the audit trail names the node, not just the
	// digest key.
	nodeName := ""
	record, err := s.store.Get(ctx, info.Key)
	if err == nil && record != nil {
		nodeName = record.NodeName
	}

	if err := s.store.Delete(ctx, info.Key); err != nil {
		return fmt.Errorf("failed to delete orphaned record %s: %w", info.Key, err)
	}

	controllermetrics.IncrementSweptRecords()
	logging.LogAuditEvent(logger, logging.EventRecordSwept, map[string]string{
		"key":  info.Key,
		"node": nodeName,
	})

	return nil
}
