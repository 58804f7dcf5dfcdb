// internal/adapters/db/fetcher.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
)

// filterColumns maps backend filter parameters onto transfer columns.
// Parameters outside this allowlist are dropped.
var filterColumns = map[string]string{
	"category":  "category",
	"direction": "direction",
	"channel":   "channel",
	"kind":      "kind",
}

// Fetcher is the read-only database implementation of the data port,
// used when searchd runs co-located with the platform database instead
// of going through its REST API. Payments are not supported here.
type Fetcher struct {
	db     *Database
	sb     squirrel.StatementBuilderType
	logger *slog.Logger
}

var _ ports.DataFetcher = (*Fetcher)(nil)

// NewFetcher creates a database-backed fetcher.
func NewFetcher(database *Database, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		db:     database,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger.With(slog.String("component", "db_fetcher")),
	}
}

// Search pages through the transfers table with the normalized filters.
func (f *Fetcher) Search(ctx context.Context, q domain.SearchQuery) (*domain.PagedResult, error) {
	base := f.sb.
		Select().
		From("transfers t").
		Where(squirrel.Eq{"t.deleted_at": nil})

	if q.Owner != "" {
		base = base.Where(squirrel.Eq{"t.owner": q.Owner})
	}
	if q.AccountType != "" {
		base = base.Where(squirrel.Eq{"t.account_type": q.AccountType})
	}
	if q.Keywords != "" {
		kw := "%" + q.Keywords + "%"
		base = base.Where(squirrel.Or{
			squirrel.ILike{"t.description": kw},
			squirrel.ILike{"t.from_user": kw},
			squirrel.ILike{"t.to_user": kw},
		})
	}
	for param, vals := range q.Filters {
		col, ok := filterColumns[param]
		if !ok {
			f.logger.WarnContext(ctx, "dropping unmapped filter parameter",
				slog.String("param", param))
			continue
		}
		base = base.Where(squirrel.Eq{"t." + col: vals})
	}
	if len(q.AmountRange) == 2 {
		if q.AmountRange[0] != "" {
			base = base.Where(squirrel.GtOrEq{"t.amount": q.AmountRange[0]})
		}
		if q.AmountRange[1] != "" {
			base = base.Where(squirrel.LtOrEq{"t.amount": q.AmountRange[1]})
		}
	}
	if len(q.Period) == 2 {
		if q.Period[0] != "" {
			base = base.Where(squirrel.GtOrEq{"t.date": q.Period[0]})
		}
		if q.Period[1] != "" {
			base = base.Where(squirrel.LtOrEq{"t.date": q.Period[1]})
		}
	}

	countSQL, countArgs, err := base.Column("COUNT(*)").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := f.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transfers: %w", err)
	}

	pageSQL, pageArgs, err := base.
		Columns("t.id", "t.date", "t.amount", "t.from_user", "t.to_user", "t.kind", "t.description").
		OrderBy("t.date DESC", "t.id DESC").
		Limit(uint64(q.PageSize)).
		Offset(uint64((q.PageNumber - 1) * q.PageSize)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := f.db.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to search transfers: %w", err)
	}
	defer rows.Close()

	var items []domain.TransferRow
	for rows.Next() {
		var row domain.TransferRow
		if err := rows.Scan(&row.ID, &row.Date, &row.Amount,
			&row.From, &row.To, &row.Kind, &row.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transfer rows: %w", err)
	}

	return &domain.PagedResult{
		Items:      items,
		TotalCount: total,
		PageNumber: q.PageNumber,
	}, nil
}

// TypesForSubject resolves the payment types a destination accepts. An
// exact lookup that matches no user answers like the platform API does,
// with a not-found status, so the cascade's query fallback still works.
func (f *Fetcher) TypesForSubject(ctx context.Context, subject domain.Subject) (*domain.TypeList, error) {
	userQuery := f.sb.Select("u.id").From("users u")
	if subject.Query {
		userQuery = userQuery.Where(squirrel.ILike{"u.name": "%" + subject.Value + "%"}).Limit(1)
	} else {
		userQuery = userQuery.Where(squirrel.Eq{"u.id": subject.Value})
	}

	userSQL, userArgs, err := userQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var userID string
	if err := f.db.QueryRow(ctx, userSQL, userArgs...).Scan(&userID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &domain.StatusError{Status: http.StatusNotFound, Body: "user not found"}
		}
		return nil, fmt.Errorf("failed to resolve subject: %w", err)
	}

	typesSQL, typesArgs, err := f.sb.
		Select("pt.id", "pt.name", "pt.from_account", "pt.to_account").
		From("payment_types pt").
		Join("user_payment_types upt ON upt.payment_type_id = pt.id").
		Where(squirrel.Eq{"upt.user_id": userID, "pt.enabled": true}).
		OrderBy("pt.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build types query: %w", err)
	}

	rows, err := f.db.Query(ctx, typesSQL, typesArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment types: %w", err)
	}
	defer rows.Close()

	var list domain.TypeList
	for rows.Next() {
		var pt domain.PaymentType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.From, &pt.To); err != nil {
			return nil, fmt.Errorf("failed to scan payment type: %w", err)
		}
		list.Types = append(list.Types, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payment types: %w", err)
	}

	return &list, nil
}

// TypeDetail loads one payment type with its fee schedule and custom
// field declarations.
func (f *Fetcher) TypeDetail(ctx context.Context, id string) (*domain.TypeDetail, error) {
	typeSQL, typeArgs, err := f.sb.
		Select("pt.id", "pt.name", "pt.from_account", "pt.to_account", "pt.fixed_amount").
		From("payment_types pt").
		Where(squirrel.Eq{"pt.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build type query: %w", err)
	}

	var detail domain.TypeDetail
	err = f.db.QueryRow(ctx, typeSQL, typeArgs...).Scan(
		&detail.Type.ID, &detail.Type.Name,
		&detail.Type.From, &detail.Type.To,
		&detail.FixedAmount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &domain.StatusError{Status: http.StatusNotFound, Body: "payment type not found"}
		}
		return nil, fmt.Errorf("failed to fetch payment type %s: %w", id, err)
	}

	feesSQL, feesArgs, err := f.sb.
		Select("name", "fixed", "percent").
		From("payment_type_fees").
		Where(squirrel.Eq{"payment_type_id": id}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build fees query: %w", err)
	}

	rows, err := f.db.Query(ctx, feesSQL, feesArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fee domain.FeeSpec
		if err := rows.Scan(&fee.Name, &fee.Fixed, &fee.Percent); err != nil {
			return nil, fmt.Errorf("failed to scan fee: %w", err)
		}
		detail.Fees = append(detail.Fees, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fees: %w", err)
	}

	fieldsSQL, fieldsArgs, err := f.sb.
		Select("internal", "label", "type", "required").
		From("payment_type_fields").
		Where(squirrel.Eq{"payment_type_id": id}).
		OrderBy("internal").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build fields query: %w", err)
	}

	fieldRows, err := f.db.Query(ctx, fieldsSQL, fieldsArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch custom fields: %w", err)
	}
	defer fieldRows.Close()

	for fieldRows.Next() {
		var cf domain.CustomFieldSpec
		if err := fieldRows.Scan(&cf.Internal, &cf.Label, &cf.Type, &cf.Required); err != nil {
			return nil, fmt.Errorf("failed to scan custom field: %w", err)
		}
		detail.CustomFields = append(detail.CustomFields, cf)
	}
	if err := fieldRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read custom fields: %w", err)
	}

	return &detail, nil
}

// PerformPayment is not available on the read-only database path;
// payments must go through the platform API.
func (f *Fetcher) PerformPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, domain.ErrUnsupported
}
