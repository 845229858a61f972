package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bazaar-service/internal/domain"
)

// ErrFilterParse marks a malformed decimal or timestamp literal in an
// AdFilter. It is returned before any query reaches the database.
var ErrFilterParse = errors.New("malformed filter value")

// clause is one predicate condition. The same clause list is rendered
// into both the offset/limit query and the cursor declaration, so the
// two paths cannot diverge in predicate order or semantics.
type clause struct {
	column string
	op     string
	arg    interface{}
}

const adColumns = "id, title, description, price, status, user_email, user_phone, created_at, updated_at, top_ad, images"

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// buildClauses translates a filter into predicate clauses in a fixed
// order: title, description, price<, price>, updated_at<, updated_at>.
func buildClauses(filter domain.AdFilter) ([]clause, error) {
	var clauses []clause

	if filter.TitleContains != nil {
		clauses = append(clauses, clause{
			column: "title",
			op:     "ILIKE",
			arg:    "%" + *filter.TitleContains + "%",
		})
	}

	if filter.DescriptionContains != nil {
		clauses = append(clauses, clause{
			column: "description",
			op:     "ILIKE",
			arg:    "%" + *filter.DescriptionContains + "%",
		})
	}

	if filter.PriceLT != nil {
		price, err := parsePrice(*filter.PriceLT)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause{column: "price", op: "<", arg: price})
	}

	if filter.PriceGT != nil {
		price, err := parsePrice(*filter.PriceGT)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause{column: "price", op: ">", arg: price})
	}

	if filter.UpdatedAtLT != nil {
		ts, err := parseTimestamp(*filter.UpdatedAtLT)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause{column: "updated_at", op: "<", arg: ts})
	}

	if filter.UpdatedAtGT != nil {
		ts, err := parseTimestamp(*filter.UpdatedAtGT)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause{column: "updated_at", op: ">", arg: ts})
	}

	return clauses, nil
}

// renderWhere renders clauses into a parameterized WHERE fragment with
// placeholders numbered from startIdx, plus the bound arguments in the
// same order. An empty clause list renders an empty fragment.
func renderWhere(clauses []clause, startIdx int) (string, []interface{}) {
	if len(clauses) == 0 {
		return "", nil
	}

	conditions := make([]string, 0, len(clauses))
	args := make([]interface{}, 0, len(clauses))

	for i, c := range clauses {
		conditions = append(conditions, fmt.Sprintf("%s %s $%d", c.column, c.op, startIdx+i))
		args = append(args, c.arg)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func parsePrice(value string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q", ErrFilterParse, value)
	}
	return price, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrFilterParse, value)
}
