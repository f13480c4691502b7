package boardservice

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/checksum"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

func attachmentPath(boardID, itemID, name string) string {
	return path.Join(boardID, itemID, name)
}

// cleanFileName rejects names carrying path separators or traversal.
func cleanFileName(name string) (string, error) {
	cleaned := filepath.Base(filepath.Clean(name))
	if name == "" || cleaned != name || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("file name %q: %w", name, apperr.ErrInvalid)
	}
	return cleaned, nil
}

func (s *Service) attachments() error {
	if s.files == nil {
		return fmt.Errorf("attachments are not configured: %w", apperr.ErrUnsupported)
	}
	return nil
}

// AttachFile stores content and appends it to the item's file column cell.
// A file with the same name on the same item is replaced.
func (s *Service) AttachFile(ctx context.Context, userID, boardID, itemID, columnID, name string, content []byte) (*models.Attachment, error) {
	if err := s.attachments(); err != nil {
		return nil, err
	}
	name, err := cleanFileName(name)
	if err != nil {
		return nil, err
	}
	att := &models.Attachment{
		Name:      name,
		Path:      attachmentPath(boardID, itemID, name),
		Size:      int64(len(content)),
		Checksum:  checksum.Sum(content),
		UpdatedAt: s.now(),
	}
	_, err = s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		b := e.Board()
		if err := requireEdit(b); err != nil {
			return change{}, err
		}
		col := b.Column(columnID)
		if col == nil || col.Type != models.ColumnFile {
			return change{}, fmt.Errorf("file column %s: %w", columnID, apperr.ErrInvalid)
		}
		it := b.Item(itemID)
		if it == nil {
			return change{}, fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
		}
		if err := s.files.Write(att.Path, content); err != nil {
			return change{}, err
		}
		files := []any{}
		if old, ok := it.Data[columnID].([]any); ok {
			for _, f := range old {
				if m, ok := f.(map[string]any); ok && m["name"] == name {
					continue
				}
				files = append(files, f)
			}
		}
		files = append(files, map[string]any{
			"name":     att.Name,
			"path":     att.Path,
			"size":     att.Size,
			"checksum": att.Checksum,
		})
		if _, err := e.UpdateItem(itemID, flexiboard.ItemPatch{Data: map[string]any{columnID: files}}); err != nil {
			return change{}, err
		}
		act := s.activity(b, models.ActivityFileUploaded, userID, itemID, fmt.Sprintf("File %q uploaded", name),
			map[string]any{"column_id": columnID, "path": att.Path})
		return change{kind: "item.updated", itemID: itemID, res: flexiboard.Result{Activities: []models.Activity{act}}}, nil
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// ReadAttachment returns the bytes of a file attached to an item.
func (s *Service) ReadAttachment(_ context.Context, userID, boardID, itemID, name string) ([]byte, error) {
	if err := s.attachments(); err != nil {
		return nil, err
	}
	name, err := cleanFileName(name)
	if err != nil {
		return nil, err
	}
	if err := s.read(boardID, userID, func(*flexiboard.Engine) error { return nil }); err != nil {
		return nil, err
	}
	return s.files.Read(attachmentPath(boardID, itemID, name))
}

// ListAttachments lists the files stored for an item.
func (s *Service) ListAttachments(_ context.Context, userID, boardID, itemID string) ([]models.Attachment, error) {
	if err := s.attachments(); err != nil {
		return nil, err
	}
	if err := s.read(boardID, userID, func(*flexiboard.Engine) error { return nil }); err != nil {
		return nil, err
	}
	return s.files.List(path.Join(boardID, itemID))
}

// DetachFile deletes a stored file and removes it from every file cell of
// the item.
func (s *Service) DetachFile(ctx context.Context, userID, boardID, itemID, name string) error {
	if err := s.attachments(); err != nil {
		return err
	}
	name, err := cleanFileName(name)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		b := e.Board()
		if err := requireEdit(b); err != nil {
			return change{}, err
		}
		it := b.Item(itemID)
		if it == nil {
			return change{}, fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
		}
		if err := s.files.Delete(attachmentPath(boardID, itemID, name)); err != nil {
			return change{}, err
		}
		for _, c := range b.Columns {
			old, ok := it.Data[c.ID].([]any)
			if c.Type != models.ColumnFile || !ok {
				continue
			}
			kept := []any{}
			for _, f := range old {
				if m, ok := f.(map[string]any); ok && m["name"] == name {
					continue
				}
				kept = append(kept, f)
			}
			it.Data[c.ID] = kept
		}
		return change{kind: "item.updated", itemID: itemID}, nil
	})
	return err
}

// purgeAttachments drops every file under dir, a board id or boardID/itemID.
func (s *Service) purgeAttachments(dir string) {
	if s.files == nil {
		return
	}
	if err := s.files.Purge(dir); err != nil {
		s.logger.Warn("boardservice: purge attachments failed",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
	}
}
