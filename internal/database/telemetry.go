package database

import (
	"context"
	"strings"

	"github.com/irfndi/catalyst-ai-go/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracedPool wraps a pool and records a span per statement.
type TracedPool struct {
	inner DatabasePool
}

func NewTracedPool(inner DatabasePool) *TracedPool {
	return &TracedPool{inner: inner}
}

func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := startDBSpan(ctx, "db.Query", sql)
	defer span.End()

	rows, err := p.inner.Query(ctx, sql, args...)
	telemetry.RecordError(span, err)
	return rows, err
}

// QueryRow errors surface at Scan, after the span has ended.
func (p *TracedPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := startDBSpan(ctx, "db.QueryRow", sql)
	defer span.End()

	return p.inner.QueryRow(ctx, sql, args...)
}

func (p *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := startDBSpan(ctx, "db.Exec", sql)
	defer span.End()

	tag, err := p.inner.Exec(ctx, sql, args...)
	if err != nil {
		telemetry.RecordError(span, err)
		return tag, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	return tag, nil
}

func (p *TracedPool) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := telemetry.StartSpan(ctx, "db.Begin", attribute.String("db.system", "postgresql"))
	defer span.End()

	tx, err := p.inner.Begin(ctx)
	telemetry.RecordError(span, err)
	return tx, err
}

func startDBSpan(ctx context.Context, name, sql string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, name,
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation(sql)),
	)
}

// operation returns the leading SQL verb, e.g. SELECT or WITH.
func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
