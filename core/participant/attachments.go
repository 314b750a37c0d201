package participant

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
)

var (
	ErrNoAttachment       = errors.New("participant has no attachment")
	errBadAttachmentName  = errors.New("invalid attachment filename")
	allowedAttachmentExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".pdf": true,
	}
	unsafeFilenameChars = regexp.MustCompile(`[^\w.-]+`)
)

// sanitizeFilename reduces an uploaded filename to a safe basename.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}

// SetAttachment stores the uploaded file as the participant's single
// attachment, replacing (and removing) any previous one. The stored name is
// prefixed with the phone number so attachments never collide.
func (svc *Service) SetAttachment(ctx context.Context, phone, filename string, r io.Reader) (Participant, error) {
	p, err := svc.repo.GetParticipant(ctx, phone)
	if err != nil {
		return Participant{}, err
	}

	clean := sanitizeFilename(filename)
	if clean == "" {
		return Participant{}, core.NewValidationError(errBadAttachmentName,
			core.FieldError{Field: "attachment", Error: errBadAttachmentName.Error()})
	}
	if !allowedAttachmentExts[strings.ToLower(filepath.Ext(clean))] {
		return Participant{}, core.NewValidationError(errBadAttachmentName,
			core.FieldError{Field: "attachment", Error: "only jpg, jpeg, png, gif and pdf files are allowed"})
	}

	stored := fmt.Sprintf("%s_%s", p.Phone, clean)
	if p.AttachmentFilename.Valid && p.AttachmentFilename.String != stored {
		_ = svc.files.Delete(p.AttachmentFilename.String)
	}
	if err = svc.files.Save(stored, r); err != nil {
		return Participant{}, errors.Wrap(err, "saving attachment")
	}

	p.AttachmentFilename = null.StringFrom(stored)
	err = svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		var err error
		p, err = svc.repo.UpdateParticipant(ctx, p, tx)
		return errors.Wrap(err, "updating participant")
	})
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

// DeleteAttachment removes the participant's attachment file and clears the
// record. A file already missing on disk only clears the record.
func (svc *Service) DeleteAttachment(ctx context.Context, phone string) (Participant, error) {
	p, err := svc.repo.GetParticipant(ctx, phone)
	if err != nil {
		return Participant{}, err
	}
	if !p.AttachmentFilename.Valid {
		return Participant{}, ErrNoAttachment
	}

	_ = svc.files.Delete(p.AttachmentFilename.String)
	p.AttachmentFilename = null.String{}
	err = svc.atomic.RunInTx(ctx, func(tx core.DBExecutor) error {
		var err error
		p, err = svc.repo.UpdateParticipant(ctx, p, tx)
		return errors.Wrap(err, "updating participant")
	})
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

// OpenAttachment serves a stored attachment by its stored name.
func (svc *Service) OpenAttachment(name string) (io.ReadCloser, error) {
	clean := sanitizeFilename(name)
	if clean == "" || clean != name {
		return nil, errBadAttachmentName
	}
	return svc.files.Open(clean)
}
