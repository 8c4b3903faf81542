// Package leadsource fetches lead submissions for analysis, either from the
// local database or from a remote leads endpoint.
package leadsource

import (
	"context"
	"errors"
	"fmt"

	"hubebony/models"
)

// ErrUpstream marks failures reported by the lead store itself.
var ErrUpstream = errors.New("lead source request failed")

// Source returns the lead submissions matching a filter.
type Source interface {
	FetchLeads(ctx context.Context, filter models.RepeatLeadFilter) ([]models.LeadSubmission, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, filter models.RepeatLeadFilter) ([]models.LeadSubmission, error)

func (f SourceFunc) FetchLeads(ctx context.Context, filter models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
	return f(ctx, filter)
}

type pageFunc func(ctx context.Context, offset, limit int) ([]models.LeadSubmission, error)

// fetchAllPages reads pages of pageSize rows until a short page ends the
// result. A store that ignores the paging parameters is an error rather
// than a silently truncated or endless result.
func fetchAllPages(ctx context.Context, pageSize int, fetch pageFunc) ([]models.LeadSubmission, error) {
	var all []models.LeadSubmission
	for offset := 0; ; offset += pageSize {
		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) > pageSize {
			return nil, fmt.Errorf("%w: got %d rows for a page of %d", ErrUpstream, len(page), pageSize)
		}
		if offset > 0 && len(page) > 0 && page[0].ID != "" && page[0].ID == all[offset-pageSize].ID {
			return nil, fmt.Errorf("%w: offset %d returned the previous page again", ErrUpstream, offset)
		}

		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
