package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/client"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Setter sends one ACL mutation.  *client.Client implements it.
type Setter interface {
	SetACL(ctx context.Context, cred *auth.Credential, repository string, m acl.Mutation) client.Result
}

// Failure is a mutation the server did not confirm.
type Failure struct {
	Mutation acl.Mutation
	Result   client.Result
}

// Outcome is the settled result of applying a mutation list.
type Outcome struct {
	OK      bool
	Aborted bool
	// Applied lists the confirmed mutations, in mutation order.
	Applied []acl.Mutation
	Failed  []Failure
	// First is the failure that settled first, nil when none.
	First *Failure
	// State is the last known set with the confirmed mutations folded in.  It is the last
	// known set unchanged when the run was aborted.
	State acl.Set
	// NeedsRefresh is set when State may differ from the server.
	NeedsRefresh bool
	// Err aggregates every failure.
	Err error
}

type Orchestrator struct {
	setter      Setter
	normalizer  auth.Normalizer
	parallelism int
}

// NewOrchestrator returns an orchestrator running at most parallelism calls at once, no
// limit when parallelism <= 0.
func NewOrchestrator(setter Setter, n auth.Normalizer, parallelism int) *Orchestrator {
	return &Orchestrator{setter: setter, normalizer: n, parallelism: parallelism}
}

// Apply sends every mutation as an independent call and waits for all of them.  Confirmed
// mutations are kept even when others fail.
func (o *Orchestrator) Apply(ctx context.Context, cred *auth.Credential, repository string, lastKnown acl.Set, mutations []acl.Mutation) Outcome {
	if len(mutations) == 0 {
		return Outcome{OK: true, State: lastKnown.Clone()}
	}
	log := logging.FromContext(ctx).WithFields(logging.Fields{
		logging.RepositoryFieldKey: repository,
		"mutations":                len(mutations),
	})

	results := make([]client.Result, len(mutations))
	var (
		mu       sync.Mutex
		firstIdx = -1
	)
	var g errgroup.Group
	if o.parallelism > 0 {
		g.SetLimit(o.parallelism)
	}
	for i, m := range mutations {
		i, m := i, m
		g.Go(func() error {
			res := o.setter.SetACL(ctx, cred, repository, m)
			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			if !res.OK && firstIdx < 0 {
				firstIdx = i
			}
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{}
	var errs *multierror.Error
	for i, res := range results {
		if res.OK {
			out.Applied = append(out.Applied, mutations[i])
			continue
		}
		if errors.Is(res.Err, client.ErrAborted) {
			out.Aborted = true
		}
		out.Failed = append(out.Failed, Failure{Mutation: mutations[i], Result: res})
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", mutations[i], resultError(res)))
	}
	if ctx.Err() != nil && len(out.Failed) > 0 {
		out.Aborted = true
	}
	if firstIdx >= 0 {
		out.First = &Failure{Mutation: mutations[firstIdx], Result: results[firstIdx]}
	}
	out.Err = errs.ErrorOrNil()
	out.OK = out.Err == nil && !out.Aborted

	switch {
	case out.Aborted:
		out.State = lastKnown.Clone()
		out.NeedsRefresh = len(out.Applied) > 0
	default:
		out.State = lastKnown.Apply(o.normalizer, out.Applied)
		out.NeedsRefresh = !out.OK
	}

	if out.Err != nil {
		log.WithError(out.Err).WithFields(logging.Fields{
			"applied": len(out.Applied),
			"failed":  len(out.Failed),
			"aborted": out.Aborted,
		}).Warn("ACL mutations failed")
	} else {
		log.Debug("ACL mutations applied")
	}
	return out
}

func resultError(res client.Result) error {
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("%w: %d", client.ErrUnexpectedStatus, res.Code)
}
