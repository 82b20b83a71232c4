package exhibition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exhibition operations

func (s *service) CreateExhibition(ctx context.Context, req CreateExhibitionRequest) (*Exhibition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	slug, err := MakeSlug(req.Title)
	if err != nil {
		return nil, err
	}
	if req.Image != nil {
		if _, err := s.media.CheckUpload(*req.Image); err != nil {
			return nil, err
		}
		// Fail on a taken slug before any blob is written.
		if err := s.repository.WithTx(ctx, func(tx Tx) error {
			return checkSlugFree(ctx, tx, slug, uuid.Nil)
		}); err != nil {
			return nil, err
		}
	}

	now := s.now()
	ex := &Exhibition{
		ID:          uuid.New(),
		Title:       req.Title,
		Slug:        slug,
		Description: req.Description,
		Published:   req.Published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Published {
		ex.PublishedAt = &now
	}

	insert := func(ref AssetRef) error {
		ex.Image = ref
		return s.repository.WithTx(ctx, func(tx Tx) error {
			if err := checkSlugFree(ctx, tx, slug, uuid.Nil); err != nil {
				return err
			}
			return tx.CreateExhibition(ctx, ex)
		})
	}

	if req.Image != nil {
		_, err = s.media.Attach(ctx, *req.Image, insert)
	} else {
		err = insert("")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create exhibition: %w", err)
	}

	s.emit(ctx, "exhibition_created", s.eventSink.ExhibitionCreated(ctx, ex))
	return ex, nil
}

func (s *service) GetExhibition(ctx context.Context, id uuid.UUID) (*Exhibition, error) {
	var ex *Exhibition
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		ex, err = tx.GetExhibition(ctx, id)
		return err
	})
	if err != nil {
		return nil, opError("exhibition", id, "get", err)
	}
	return ex, nil
}

func (s *service) GetExhibitionBySlug(ctx context.Context, slug string) (*Exhibition, error) {
	var ex *Exhibition
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		ex, err = tx.GetExhibitionBySlug(ctx, slug)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get exhibition %q: %w", slug, err)
	}
	return ex, nil
}

// GetExhibitionTree loads an exhibition with its sections and blocks, each
// level sorted by order.
func (s *service) GetExhibitionTree(ctx context.Context, id uuid.UUID) (*ExhibitionTree, error) {
	var tree *ExhibitionTree
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		ex, err := tx.GetExhibition(ctx, id)
		if err != nil {
			return err
		}
		sections, err := tx.ListSections(ctx, id)
		if err != nil {
			return err
		}
		tree = &ExhibitionTree{Exhibition: *ex, Sections: make([]*SectionTree, 0, len(sections))}
		for _, sec := range sections {
			blocks, err := tx.ListContentBlocks(ctx, sec.ID)
			if err != nil {
				return err
			}
			tree.Sections = append(tree.Sections, &SectionTree{Section: *sec, Blocks: blocks})
		}
		return nil
	})
	if err != nil {
		return nil, opError("exhibition", id, "get_tree", err)
	}
	return tree, nil
}

func (s *service) ListExhibitions(ctx context.Context, filter ExhibitionFilter) (*ExhibitionPage, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidRequest)
	}
	page := &ExhibitionPage{}
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		page.Items, page.Total, err = tx.ListExhibitions(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list exhibitions: %w", err)
	}
	return page, nil
}

// UpdateExhibition applies a partial update. A title change re-derives the
// slug. Publishing stamps PublishedAt, unpublishing clears it. A new image
// replaces the old one, which is deleted only after the row is committed.
func (s *service) UpdateExhibition(ctx context.Context, id uuid.UUID, req UpdateExhibitionRequest) (*Exhibition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	plan := func(tx Tx) (*Exhibition, error) {
		ex, err := tx.GetExhibition(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.applyExhibitionUpdate(ctx, tx, ex, req, now)
	}

	var updated *Exhibition
	commit := func(newRef AssetRef) (AssetRef, error) {
		var old AssetRef
		err := s.repository.WithTx(ctx, func(tx Tx) error {
			u, err := plan(tx)
			if err != nil {
				return err
			}
			if !newRef.IsZero() {
				old = u.Image
				u.Image = newRef
			}
			if err := tx.UpdateExhibition(ctx, u); err != nil {
				return err
			}
			updated = u
			return nil
		})
		return old, err
	}

	if req.Image == nil {
		if _, err := commit(""); err != nil {
			return nil, opError("exhibition", id, "update", err)
		}
	} else {
		if _, err := s.media.CheckUpload(*req.Image); err != nil {
			return nil, err
		}
		if err := s.repository.WithTx(ctx, func(tx Tx) error {
			_, err := plan(tx)
			return err
		}); err != nil {
			return nil, opError("exhibition", id, "update", err)
		}
		if _, err := s.media.Replace(ctx, *req.Image, commit); err != nil {
			return nil, opError("exhibition", id, "update", err)
		}
	}

	s.emit(ctx, "exhibition_updated", s.eventSink.ExhibitionUpdated(ctx, updated))
	return updated, nil
}

func (s *service) applyExhibitionUpdate(ctx context.Context, tx Tx, ex *Exhibition, req UpdateExhibitionRequest, now time.Time) (*Exhibition, error) {
	u := *ex

	if req.Title != nil && *req.Title != ex.Title {
		slug, err := MakeSlug(*req.Title)
		if err != nil {
			return nil, err
		}
		if slug != ex.Slug {
			if err := checkSlugFree(ctx, tx, slug, ex.ID); err != nil {
				return nil, err
			}
		}
		u.Title = *req.Title
		u.Slug = slug
	}
	if req.Description != nil {
		u.Description = *req.Description
	}
	if req.Published != nil {
		switch {
		case *req.Published && !ex.Published:
			t := now
			u.PublishedAt = &t
		case !*req.Published && ex.Published:
			u.PublishedAt = nil
		}
		u.Published = *req.Published
	}
	u.UpdatedAt = now
	return &u, nil
}

// DeleteExhibition removes blocks, sections and the exhibition row in one
// transaction, then deletes the image.
func (s *service) DeleteExhibition(ctx context.Context, id uuid.UUID) error {
	var image AssetRef
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		ex, err := tx.GetExhibition(ctx, id)
		if err != nil {
			return err
		}
		image = ex.Image

		sections, err := tx.ListSections(ctx, id)
		if err != nil {
			return err
		}
		for _, sec := range sections {
			if err := deleteSectionBlocks(ctx, tx, sec.ID); err != nil {
				return err
			}
		}
		for _, sec := range sections {
			if err := tx.DeleteSection(ctx, sec.ID); err != nil {
				return err
			}
		}
		return tx.DeleteExhibition(ctx, id)
	})
	if err != nil {
		return opError("exhibition", id, "delete", err)
	}

	s.media.Release(ctx, image)
	s.emit(ctx, "exhibition_deleted", s.eventSink.ExhibitionDeleted(ctx, id))
	return nil
}

// Section operations

func (s *service) CreateSection(ctx context.Context, exhibitionID uuid.UUID, req CreateSectionRequest) (*Section, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var sec *Section
	err := s.withOrderRetry(req.Order == nil, func() error {
		return s.repository.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.GetExhibition(ctx, exhibitionID); err != nil {
				return err
			}
			order, err := AllocateOrder(ctx, tx, SectionScope(exhibitionID), req.Order)
			if err != nil {
				return err
			}
			sec = &Section{
				ID:           uuid.New(),
				ExhibitionID: exhibitionID,
				Title:        req.Title,
				Order:        order,
				CreatedAt:    s.now(),
			}
			return tx.CreateSection(ctx, sec)
		})
	})
	if err != nil {
		return nil, opError("exhibition", exhibitionID, "create_section", err)
	}
	return sec, nil
}

func (s *service) GetSection(ctx context.Context, exhibitionID, sectionID uuid.UUID) (*SectionTree, error) {
	var tree *SectionTree
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		sec, err := getOwnedSection(ctx, tx, exhibitionID, sectionID)
		if err != nil {
			return err
		}
		blocks, err := tx.ListContentBlocks(ctx, sec.ID)
		if err != nil {
			return err
		}
		tree = &SectionTree{Section: *sec, Blocks: blocks}
		return nil
	})
	if err != nil {
		return nil, opError("section", sectionID, "get", err)
	}
	return tree, nil
}

func (s *service) ListSections(ctx context.Context, exhibitionID uuid.UUID) ([]*Section, error) {
	var sections []*Section
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetExhibition(ctx, exhibitionID); err != nil {
			return err
		}
		var err error
		sections, err = tx.ListSections(ctx, exhibitionID)
		return err
	})
	if err != nil {
		return nil, opError("exhibition", exhibitionID, "list_sections", err)
	}
	return sections, nil
}

func (s *service) UpdateSection(ctx context.Context, exhibitionID, sectionID uuid.UUID, req UpdateSectionRequest) (*Section, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var sec *Section
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		sec, err = getOwnedSection(ctx, tx, exhibitionID, sectionID)
		if err != nil {
			return err
		}
		if req.Title != nil {
			sec.Title = *req.Title
		}
		if req.Order != nil && *req.Order != sec.Order {
			if err := CheckOrderAvailable(ctx, tx, SectionScope(exhibitionID), *req.Order, sec.ID); err != nil {
				return err
			}
			sec.Order = *req.Order
		}
		return tx.UpdateSection(ctx, sec)
	})
	if err != nil {
		return nil, opError("section", sectionID, "update", err)
	}
	return sec, nil
}

// DeleteSection removes a section of the given exhibition together with its blocks.
func (s *service) DeleteSection(ctx context.Context, exhibitionID, sectionID uuid.UUID) error {
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		if _, err := getOwnedSection(ctx, tx, exhibitionID, sectionID); err != nil {
			return err
		}
		if err := deleteSectionBlocks(ctx, tx, sectionID); err != nil {
			return err
		}
		return tx.DeleteSection(ctx, sectionID)
	})
	return opError("section", sectionID, "delete", err)
}

// Content block operations

// CreateContentBlock checks the text/book rule first, then the section and
// the referenced book, then allocates the position.
func (s *service) CreateContentBlock(ctx context.Context, sectionID uuid.UUID, req CreateContentBlockRequest) (*ContentBlock, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := InferBlockType(req.Text, req.BookID)
	if req.Type != nil {
		t = *req.Type
	}
	payload, err := NewBlockPayload(t, req.Text, req.BookID)
	if err != nil {
		return nil, err
	}

	var block *ContentBlock
	err = s.withOrderRetry(req.Order == nil, func() error {
		return s.repository.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.GetSection(ctx, sectionID); err != nil {
				return err
			}
			if err := checkPayloadReference(ctx, tx, payload); err != nil {
				return err
			}
			order, err := AllocateOrder(ctx, tx, BlockScope(sectionID), req.Order)
			if err != nil {
				return err
			}
			block = &ContentBlock{
				ID:        uuid.New(),
				SectionID: sectionID,
				Order:     order,
				Payload:   payload,
				CreatedAt: s.now(),
			}
			return tx.CreateContentBlock(ctx, block)
		})
	})
	if err != nil {
		return nil, opError("section", sectionID, "create_content_block", err)
	}
	return block, nil
}

func (s *service) ListContentBlocks(ctx context.Context, sectionID uuid.UUID) ([]*ContentBlock, error) {
	var blocks []*ContentBlock
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetSection(ctx, sectionID); err != nil {
			return err
		}
		var err error
		blocks, err = tx.ListContentBlocks(ctx, sectionID)
		return err
	})
	if err != nil {
		return nil, opError("section", sectionID, "list_content_blocks", err)
	}
	return blocks, nil
}

func (s *service) GetContentBlock(ctx context.Context, sectionID, contentID uuid.UUID) (*ContentBlock, error) {
	var block *ContentBlock
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		block, err = getOwnedBlock(ctx, tx, sectionID, contentID)
		return err
	})
	if err != nil {
		return nil, opError("content_block", contentID, "get", err)
	}
	return block, nil
}

// UpdateContentBlock applies a patch and re-validates the resulting block as a whole.
func (s *service) UpdateContentBlock(ctx context.Context, sectionID, contentID uuid.UUID, patch BlockPatch) (*ContentBlock, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var block *ContentBlock
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		var err error
		block, err = getOwnedBlock(ctx, tx, sectionID, contentID)
		if err != nil {
			return err
		}
		payload, err := ApplyBlockPatch(block.Payload, patch)
		if err != nil {
			return err
		}
		if err := checkPayloadReference(ctx, tx, payload); err != nil {
			return err
		}
		if patch.Order != nil && *patch.Order != block.Order {
			if err := CheckOrderAvailable(ctx, tx, BlockScope(sectionID), *patch.Order, block.ID); err != nil {
				return err
			}
			block.Order = *patch.Order
		}
		block.Payload = payload
		return tx.UpdateContentBlock(ctx, block)
	})
	if err != nil {
		return nil, opError("content_block", contentID, "update", err)
	}
	return block, nil
}

// DeleteContentBlock removes a block. A referenced book is never touched.
func (s *service) DeleteContentBlock(ctx context.Context, sectionID, contentID uuid.UUID) error {
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		if _, err := getOwnedBlock(ctx, tx, sectionID, contentID); err != nil {
			return err
		}
		return tx.DeleteContentBlock(ctx, contentID)
	})
	return opError("content_block", contentID, "delete", err)
}

// UnlinkBookFromBlock detaches a book from the block that shows it. A book
// block without its book is meaningless, so the block itself is removed.
func (s *service) UnlinkBookFromBlock(ctx context.Context, contentID, bookID uuid.UUID) error {
	err := s.repository.WithTx(ctx, func(tx Tx) error {
		block, err := tx.GetContentBlock(ctx, contentID)
		if err != nil {
			return err
		}
		linked, ok := block.BookID()
		if !ok || linked != bookID {
			return fmt.Errorf("%w: block does not reference book %s", ErrContentBlockNotFound, bookID)
		}
		return tx.DeleteContentBlock(ctx, contentID)
	})
	return opError("content_block", contentID, "unlink_book", err)
}

// helpers

func checkSlugFree(ctx context.Context, tx Tx, slug string, exclude uuid.UUID) error {
	exists, err := tx.SlugExists(ctx, slug, exclude)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSlug, slug)
	}
	return nil
}

func getOwnedSection(ctx context.Context, tx Tx, exhibitionID, sectionID uuid.UUID) (*Section, error) {
	sec, err := tx.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec.ExhibitionID != exhibitionID {
		return nil, ErrSectionNotFound
	}
	return sec, nil
}

func getOwnedBlock(ctx context.Context, tx Tx, sectionID, contentID uuid.UUID) (*ContentBlock, error) {
	block, err := tx.GetContentBlock(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if block.SectionID != sectionID {
		return nil, ErrContentBlockNotFound
	}
	return block, nil
}

func deleteSectionBlocks(ctx context.Context, tx Tx, sectionID uuid.UUID) error {
	blocks, err := tx.ListContentBlocks(ctx, sectionID)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := tx.DeleteContentBlock(ctx, b.ID); err != nil {
			return err
		}
	}
	return nil
}

func checkPayloadReference(ctx context.Context, tx Tx, payload BlockPayload) error {
	bp, ok := payload.(BookPayload)
	if !ok {
		return nil
	}
	if _, err := tx.GetBook(ctx, bp.BookID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: book %s", ErrInvalidReference, bp.BookID)
		}
		return err
	}
	return nil
}
