package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sigdesk.app/server/common/id"
	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/queue"
	"sigdesk.app/server/internal/store"
)

var (
	ErrDeploymentNotFound   = errors.New("deployment not found")
	ErrDeploymentInProgress = errors.New("a deployment is already in progress")
	ErrSignatureNotFound    = errors.New("no signature has been deployed for this user")
)

type DeploymentService interface {
	// Create queues a deployment of templateID, or of the default template
	// when templateID is nil.
	Create(ctx context.Context, orgID, requestedBy int64, templateID *int64) (*model.Deployment, error)
	Get(ctx context.Context, orgID, id int64) (*model.Deployment, error)
	List(ctx context.Context, orgID int64, limit, offset int32) ([]model.Deployment, error)
	LatestSignature(ctx context.Context, orgID, directoryUserID int64) (*model.DeployedSignature, error)
}

type deploymentService struct {
	txRunner      TxRunner
	stores        StoreProvider
	azureSettings AzureSettingsService
	producer      queue.Producer
	now           func() time.Time
}

func NewDeploymentService(txRunner TxRunner, stores StoreProvider, azureSettings AzureSettingsService, producer queue.Producer) DeploymentService {
	return &deploymentService{
		txRunner:      txRunner,
		stores:        stores,
		azureSettings: azureSettings,
		producer:      producer,
		now:           time.Now,
	}
}

func (s *deploymentService) Create(ctx context.Context, orgID, requestedBy int64, templateID *int64) (*model.Deployment, error) {
	tpl, err := s.resolveTemplate(ctx, orgID, templateID)
	if err != nil {
		return nil, err
	}

	settings, err := s.azureSettings.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !settings.HasSecret() {
		return nil, ErrAzureSecretRequired
	}

	d := &model.Deployment{
		ID:             id.New(),
		OrganizationID: orgID,
		TemplateID:     tpl.ID,
		Status:         model.DeploymentStatusQueued,
		RequestedBy:    requestedBy,
	}

	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		active, err := sp.Deployments().HasActive(ctx, orgID)
		if err != nil {
			return fmt.Errorf("checking active deployments: %w", err)
		}
		if active {
			return ErrDeploymentInProgress
		}
		if err := sp.Deployments().Create(ctx, d); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDeploymentInProgress
			}
			return fmt.Errorf("creating deployment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.producer.Enqueue(ctx, queue.Task{
		TaskType:       queue.TaskTypeDeployment,
		OrganizationID: orgID,
		DeploymentID:   &d.ID,
	}); err != nil {
		s.failUnqueued(ctx, d, err)
		return nil, fmt.Errorf("queueing deployment: %w", err)
	}

	slog.InfoContext(ctx, "deployment queued",
		"deployment_id", d.ID,
		"template_id", tpl.ID)
	return d, nil
}

// failUnqueued closes a deployment that never reached the queue so it does
// not block the next request.
func (s *deploymentService) failUnqueued(ctx context.Context, d *model.Deployment, cause error) {
	msg := "could not queue deployment"
	finished := s.now().UTC()
	d.Status = model.DeploymentStatusFailed
	d.Error = &msg
	d.FinishedAt = &finished
	if err := s.stores.Deployments().Finish(ctx, d); err != nil {
		slog.ErrorContext(ctx, "failed to close unqueued deployment",
			"error", err,
			"cause", cause,
			"deployment_id", d.ID)
	}
}

func (s *deploymentService) resolveTemplate(ctx context.Context, orgID int64, templateID *int64) (*model.SignatureTemplate, error) {
	var (
		tpl *model.SignatureTemplate
		err error
	)
	if templateID != nil {
		tpl, err = s.stores.Templates().GetByID(ctx, orgID, *templateID)
	} else {
		tpl, err = s.stores.Templates().GetDefault(ctx, orgID)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("getting template: %w", err)
	}
	return tpl, nil
}

func (s *deploymentService) Get(ctx context.Context, orgID, id int64) (*model.Deployment, error) {
	d, err := s.stores.Deployments().GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("getting deployment: %w", err)
	}
	return d, nil
}

func (s *deploymentService) List(ctx context.Context, orgID int64, limit, offset int32) ([]model.Deployment, error) {
	limit, offset = clampPage(limit, offset)
	ds, err := s.stores.Deployments().List(ctx, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	if ds == nil {
		ds = []model.Deployment{}
	}
	return ds, nil
}

func (s *deploymentService) LatestSignature(ctx context.Context, orgID, directoryUserID int64) (*model.DeployedSignature, error) {
	if _, err := s.stores.DirectoryUsers().GetByID(ctx, orgID, directoryUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDirectoryUserNotFound
		}
		return nil, fmt.Errorf("getting directory user: %w", err)
	}

	sig, err := s.stores.DeployedSignatures().Latest(ctx, orgID, directoryUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSignatureNotFound
		}
		return nil, fmt.Errorf("getting signature: %w", err)
	}
	return sig, nil
}
