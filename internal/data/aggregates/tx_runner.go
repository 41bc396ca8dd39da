package aggregates

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
	"github.com/yungbote/promptlab-backend/internal/platform/dbctx"
)

// TxRunner owns the transaction boundary for one aggregate write.
// fn's error rolls the transaction back; a nil return commits.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewGormTxRunner returns a runner that opens one gorm transaction per call
// with the driver's default isolation (read committed on postgres).
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

// NewGormTxRunnerWithOptions is NewGormTxRunner with explicit sql.TxOptions,
// e.g. serializable isolation for stress tests.
func NewGormTxRunnerWithOptions(db *gorm.DB, opts *sql.TxOptions) TxRunner {
	return &gormTxRunner{db: db, opts: opts}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "aggregate.tx")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", r.db.Dialector.Name()))

	var opts []*sql.TxOptions
	if r.opts != nil {
		opts = append(opts, r.opts)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	}, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
	}
	return err
}
