package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/promptlab-backend/internal/data/aggregates"
	"github.com/yungbote/promptlab-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// InjectedTxRunner is a test helper for aggregate integration tests.
//
// With DB set it runs the body in a real gorm transaction, so an injected
// FailAfterBody error rolls back everything the body wrote. Without DB the body
// runs against a bare context.
type InjectedTxRunner struct {
	mu sync.Mutex

	DB *gorm.DB

	FailBegin     error
	FailAfterBody error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	failAfterBody := r.FailAfterBody
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}

	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return failAfterBody
	}

	var err error
	if r.DB != nil {
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return body(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.RollbackCalls++
		return err
	}
	r.CommitCalls++
	return nil
}
