package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sigdesk.app/server/common/id"
	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/sanitize"
	"sigdesk.app/server/internal/signature"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/validate"
)

var (
	ErrTemplateNotFound      = errors.New("template not found")
	ErrTemplateInUse         = errors.New("template is referenced by a deployment")
	ErrDescriptionTooLong    = fmt.Errorf("description must be at most %d characters", validate.MaxDescriptionSize)
	ErrDirectoryUserNotFound = errors.New("directory user not found")
)

type TemplateInput struct {
	Name        string
	Description *string
	HTML        string
	IsDefault   bool
}

type TemplateUpdate struct {
	Name        *string
	Description *string
	HTML        *string
}

type TemplateService interface {
	Create(ctx context.Context, orgID, createdBy int64, in TemplateInput) (*model.SignatureTemplate, error)
	Get(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error)
	List(ctx context.Context, orgID int64) ([]model.SignatureTemplate, error)
	Update(ctx context.Context, orgID, id int64, in TemplateUpdate) (*model.SignatureTemplate, error)
	Delete(ctx context.Context, orgID, id int64) error
	SetDefault(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error)
	// Preview renders html against sample data, or against a synced
	// directory user when directoryUserID is set.
	Preview(ctx context.Context, orgID int64, html string, directoryUserID *int64) (string, error)
}

type templateService struct {
	txRunner TxRunner
	tplStore store.TemplateStore
	orgStore store.OrganizationStore
	dirStore store.DirectoryUserStore
}

func NewTemplateService(txRunner TxRunner, tplStore store.TemplateStore, orgStore store.OrganizationStore, dirStore store.DirectoryUserStore) TemplateService {
	return &templateService{
		txRunner: txRunner,
		tplStore: tplStore,
		orgStore: orgStore,
		dirStore: dirStore,
	}
}

func (s *templateService) Create(ctx context.Context, orgID, createdBy int64, in TemplateInput) (*model.SignatureTemplate, error) {
	name, err := validate.Name(in.Name)
	if err != nil {
		return nil, err
	}
	html, err := cleanTemplateHTML(in.HTML)
	if err != nil {
		return nil, err
	}
	desc, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}

	tpl := &model.SignatureTemplate{
		ID:             id.New(),
		OrganizationID: orgID,
		Name:           name,
		Description:    desc,
		HTML:           html,
		IsDefault:      in.IsDefault,
		CreatedBy:      createdBy,
	}

	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		templates := sp.Templates()
		if tpl.IsDefault {
			if err := templates.ClearDefault(ctx, orgID); err != nil {
				return fmt.Errorf("clearing default template: %w", err)
			}
		} else if _, err := templates.GetDefault(ctx, orgID); errors.Is(err, store.ErrNotFound) {
			// The first template of an organization becomes its default.
			tpl.IsDefault = true
		} else if err != nil {
			return fmt.Errorf("getting default template: %w", err)
		}

		if err := templates.Create(ctx, tpl); err != nil {
			return fmt.Errorf("creating template: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "template created", "template_id", tpl.ID, "is_default", tpl.IsDefault)
	return tpl, nil
}

func (s *templateService) Get(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error) {
	tpl, err := s.tplStore.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("getting template: %w", err)
	}
	return tpl, nil
}

func (s *templateService) List(ctx context.Context, orgID int64) ([]model.SignatureTemplate, error) {
	tpls, err := s.tplStore.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return tpls, nil
}

func (s *templateService) Update(ctx context.Context, orgID, id int64, in TemplateUpdate) (*model.SignatureTemplate, error) {
	tpl, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if tpl.Name, err = validate.Name(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if tpl.Description, err = cleanDescription(in.Description); err != nil {
			return nil, err
		}
	}
	if in.HTML != nil {
		if tpl.HTML, err = cleanTemplateHTML(*in.HTML); err != nil {
			return nil, err
		}
	}

	if err := s.tplStore.Update(ctx, tpl); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("updating template: %w", err)
	}
	return tpl, nil
}

func (s *templateService) Delete(ctx context.Context, orgID, id int64) error {
	if err := s.tplStore.Delete(ctx, orgID, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return ErrTemplateNotFound
		case db.IsForeignKeyViolation(err):
			return ErrTemplateInUse
		}
		return fmt.Errorf("deleting template: %w", err)
	}
	slog.InfoContext(ctx, "template deleted", "template_id", id)
	return nil
}

func (s *templateService) SetDefault(ctx context.Context, orgID, id int64) (*model.SignatureTemplate, error) {
	var tpl *model.SignatureTemplate
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		templates := sp.Templates()
		var err error
		if tpl, err = templates.GetByID(ctx, orgID, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTemplateNotFound
			}
			return fmt.Errorf("getting template: %w", err)
		}
		if tpl.IsDefault {
			return nil
		}
		if err := templates.ClearDefault(ctx, orgID); err != nil {
			return fmt.Errorf("clearing default template: %w", err)
		}
		if err := templates.SetDefault(ctx, orgID, id); err != nil {
			return fmt.Errorf("setting default template: %w", err)
		}
		tpl.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *templateService) Preview(ctx context.Context, orgID int64, html string, directoryUserID *int64) (string, error) {
	if err := validate.TemplateContent(html); err != nil {
		return "", err
	}

	fields := signature.PreviewFields()
	if directoryUserID != nil {
		u, err := s.dirStore.GetByID(ctx, orgID, *directoryUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", ErrDirectoryUserNotFound
			}
			return "", fmt.Errorf("getting directory user: %w", err)
		}
		org, err := s.orgStore.GetByID(ctx, orgID)
		if err != nil {
			return "", fmt.Errorf("getting organization: %w", err)
		}
		fields = signature.FieldsFor(u, org.Name, organizationWebsite(org))
	}

	return signature.Render(html, fields)
}

// cleanTemplateHTML checks the raw markup, then stores only its sanitized form
// with placeholders left for rendering.
func cleanTemplateHTML(html string) (string, error) {
	if err := validate.TemplateContent(html); err != nil {
		return "", err
	}
	cleaned := signature.Sanitize(html)
	if strings.TrimSpace(cleaned) == "" {
		return "", fmt.Errorf("%w: nothing left after sanitizing", validate.ErrInvalidTemplate)
	}
	return cleaned, nil
}

func cleanDescription(desc *string) (*string, error) {
	if desc == nil {
		return nil, nil
	}
	d := sanitize.Text(*desc)
	if d == "" {
		return nil, nil
	}
	if len([]rune(d)) > validate.MaxDescriptionSize {
		return nil, ErrDescriptionTooLong
	}
	return &d, nil
}

func organizationWebsite(org *model.Organization) string {
	if org.Domain == nil || *org.Domain == "" {
		return ""
	}
	return "https://" + *org.Domain
}
