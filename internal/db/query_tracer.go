package db

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

type querySpanContextKey struct{}

// queryTracer opens a db.query span for every statement issued inside a
// traced request.
type queryTracer struct {
	maxQueryLen int
}

func newQueryTracer() *queryTracer {
	return &queryTracer{maxQueryLen: 512}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	query := t.normalize(data.SQL)
	span := sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithDescription(query),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", "postgresql")

	operation, table := describeQuery(query)
	if operation != "" {
		span.SetData("db.operation", operation)
	}
	if table != "" {
		span.SetData("db.collection.name", table)
	}

	return context.WithValue(span.Context(), querySpanContextKey{}, span)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, _ := ctx.Value(querySpanContextKey{}).(*sentry.Span)
	if span == nil {
		return
	}

	if data.Err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("db.error", data.Err.Error())
	} else {
		span.Status = sentry.SpanStatusOK
	}

	if rows := data.CommandTag.RowsAffected(); rows >= 0 {
		span.SetData("db.rows_affected", rows)
	}

	span.Finish()
}

func (t *queryTracer) normalize(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if normalized == "" {
		return "sql.query"
	}
	if t.maxQueryLen > 0 && len(normalized) > t.maxQueryLen {
		return normalized[:t.maxQueryLen]
	}
	return normalized
}

// describeQuery returns the SQL verb and the first table the statement touches.
func describeQuery(query string) (operation, table string) {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return "", ""
	}
	operation = strings.ToUpper(parts[0])

	marker := ""
	switch operation {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		if len(parts) > 1 {
			return operation, strings.Trim(parts[1], `"`)
		}
		return operation, ""
	default:
		return operation, ""
	}

	for i := 1; i < len(parts)-1; i++ {
		if strings.EqualFold(parts[i], marker) {
			return operation, strings.Trim(strings.TrimSuffix(parts[i+1], ","), `"()`)
		}
	}
	return operation, ""
}
