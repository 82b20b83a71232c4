package exhibition

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ScopeKind names the parent that an order is unique within.
type ScopeKind string

const (
	ScopeExhibitionSections ScopeKind = "exhibition"
	ScopeSectionBlocks      ScopeKind = "section"
)

// OrderScope identifies a sibling set: the sections of one exhibition or the
// blocks of one section.
type OrderScope struct {
	Kind     ScopeKind
	ParentID uuid.UUID
}

// SectionScope is the scope of the sections of an exhibition.
func SectionScope(exhibitionID uuid.UUID) OrderScope {
	return OrderScope{Kind: ScopeExhibitionSections, ParentID: exhibitionID}
}

// BlockScope is the scope of the blocks of a section.
func BlockScope(sectionID uuid.UUID) OrderScope {
	return OrderScope{Kind: ScopeSectionBlocks, ParentID: sectionID}
}

func (s OrderScope) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ParentID)
}

// AllocateOrder returns the position a new child of scope should take. With
// no request it is one past the current maximum (1 for an empty scope). A
// requested position is accepted verbatim unless a sibling holds it.
//
// Two concurrent callers may compute the same position; persistence rejects
// the second write with ErrOrderConflict.
func AllocateOrder(ctx context.Context, r OrderReader, scope OrderScope, requested *int) (int, error) {
	if requested != nil {
		if err := CheckOrderAvailable(ctx, r, scope, *requested, uuid.Nil); err != nil {
			return 0, err
		}
		return *requested, nil
	}

	max, err := r.MaxOrder(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to read max order for %s: %w", scope, err)
	}
	return max + 1, nil
}

// CheckOrderAvailable fails with ErrOrderConflict when a sibling other than
// exclude holds order.
func CheckOrderAvailable(ctx context.Context, r OrderReader, scope OrderScope, order int, exclude uuid.UUID) error {
	taken, err := r.OrderTaken(ctx, scope, order, exclude)
	if err != nil {
		return fmt.Errorf("failed to check order for %s: %w", scope, err)
	}
	if taken {
		return fmt.Errorf("%w: %d in %s", ErrOrderConflict, order, scope)
	}
	return nil
}
