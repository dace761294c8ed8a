package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sigdesk.app/server/common/logger"
	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/signature"
	"sigdesk.app/server/internal/store"
)

const maxDeploymentError = 500

var errTemplateMissing = errors.New("deployment template no longer exists")

type DeploymentProcessorConfig struct {
	// RenderWorkers bounds how many signatures render at once.
	RenderWorkers int
}

// DeploymentProcessor refreshes the directory, renders the deployment's
// template for every enabled user and stores the results.
type DeploymentProcessor struct {
	stores   StoreProvider
	txRunner TxRunner
	syncer   DirectorySyncer
	cfg      DeploymentProcessorConfig
	now      func() time.Time
}

func NewDeploymentProcessor(stores StoreProvider, txRunner TxRunner, syncer DirectorySyncer, cfg DeploymentProcessorConfig) *DeploymentProcessor {
	if cfg.RenderWorkers <= 0 {
		cfg.RenderWorkers = 4
	}
	return &DeploymentProcessor{
		stores:   stores,
		txRunner: txRunner,
		syncer:   syncer,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (p *DeploymentProcessor) Run(ctx context.Context, orgID, deploymentID int64) error {
	sp := logger.StartSpan(ctx, "deployment.run", trace.WithAttributes(
		attribute.Int64("organization.id", orgID),
		attribute.Int64("deployment.id", deploymentID),
	))
	defer sp.End()

	err := p.run(sp.Context(), orgID, deploymentID)
	sp.RecordError(err)
	return err
}

func (p *DeploymentProcessor) run(ctx context.Context, orgID, deploymentID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: &orgID,
		DeploymentID:   &deploymentID,
		Component:      "sigdesk.worker.deployment",
	})

	d, err := p.stores.Deployments().GetByID(ctx, orgID, deploymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "deployment not found, skipping")
			return nil
		}
		return fmt.Errorf("getting deployment: %w", err)
	}
	if d.Status.IsTerminal() {
		slog.InfoContext(ctx, "deployment already finished, skipping", "status", d.Status)
		return nil
	}

	if err := p.stores.Deployments().MarkRunning(ctx, d.ID, p.now().UTC()); err != nil {
		return fmt.Errorf("marking deployment running: %w", err)
	}

	sigs, failed, err := p.render(ctx, d)
	if err != nil {
		if isPermanent(err) {
			slog.WarnContext(ctx, "deployment failed", "error", err)
			return p.fail(ctx, d, err.Error())
		}
		return err
	}

	finished := p.now().UTC()
	d.Status = model.DeploymentStatusCompleted
	d.TotalUsers = int32(len(sigs) + failed)
	d.Succeeded = int32(len(sigs))
	d.Failed = int32(failed)
	d.FinishedAt = &finished
	if failed > 0 {
		msg := fmt.Sprintf("%d signatures could not be rendered", failed)
		d.Error = &msg
	}

	err = p.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		for i := range sigs {
			sigs[i].DeployedAt = finished
		}
		if err := sp.DeployedSignatures().InsertBatch(ctx, sigs); err != nil {
			return fmt.Errorf("storing signatures: %w", err)
		}
		if err := sp.Deployments().Finish(ctx, d); err != nil {
			return fmt.Errorf("finishing deployment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("deployment.succeeded", int(d.Succeeded)),
		attribute.Int("deployment.failed", int(d.Failed)),
	)
	slog.InfoContext(ctx, "deployment completed",
		"total_users", d.TotalUsers,
		"succeeded", d.Succeeded,
		"failed", d.Failed)
	return nil
}

func (p *DeploymentProcessor) Abandon(ctx context.Context, orgID, deploymentID int64, cause string) error {
	d, err := p.stores.Deployments().GetByID(ctx, orgID, deploymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("getting deployment: %w", err)
	}
	if d.Status.IsTerminal() {
		return nil
	}
	return p.fail(ctx, d, cause)
}

// render syncs the directory and renders every enabled user. A user whose
// signature fails to render is counted, not fatal.
func (p *DeploymentProcessor) render(ctx context.Context, d *model.Deployment) ([]model.DeployedSignature, int, error) {
	tpl, err := p.stores.Templates().GetByID(ctx, d.OrganizationID, d.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, errTemplateMissing
		}
		return nil, 0, fmt.Errorf("getting template: %w", err)
	}
	org, err := p.stores.Organizations().GetByID(ctx, d.OrganizationID)
	if err != nil {
		return nil, 0, fmt.Errorf("getting organization: %w", err)
	}

	if _, err := p.syncer.Sync(ctx, d.OrganizationID); err != nil {
		return nil, 0, fmt.Errorf("syncing directory: %w", err)
	}

	users, err := p.stores.DirectoryUsers().List(ctx, d.OrganizationID, store.DirectoryUserFilter{EnabledOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("listing directory users: %w", err)
	}

	website := ""
	if org.Domain != nil && *org.Domain != "" {
		website = "https://" + *org.Domain
	}

	rendered := make([]*model.DeployedSignature, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.RenderWorkers)
	for i := range users {
		u := &users[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			html, err := signature.Render(tpl.HTML, signature.FieldsFor(u, org.Name, website))
			if err != nil {
				slog.WarnContext(logger.WithLogFields(gctx, logger.LogFields{DirectoryUserID: &u.ID}),
					"failed to render signature", "error", err)
				return nil
			}
			rendered[i] = &model.DeployedSignature{
				DeploymentID:    d.ID,
				DirectoryUserID: u.ID,
				OrganizationID:  d.OrganizationID,
				HTML:            html,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	sigs := make([]model.DeployedSignature, 0, len(rendered))
	for _, s := range rendered {
		if s != nil {
			sigs = append(sigs, *s)
		}
	}
	return sigs, len(rendered) - len(sigs), nil
}

func (p *DeploymentProcessor) fail(ctx context.Context, d *model.Deployment, cause string) error {
	finished := p.now().UTC()
	msg := logger.Truncate(cause, maxDeploymentError)
	d.Status = model.DeploymentStatusFailed
	d.Error = &msg
	d.FinishedAt = &finished
	if err := p.stores.Deployments().Finish(ctx, d); err != nil {
		return fmt.Errorf("marking deployment failed: %w", err)
	}
	return nil
}

// isPermanent reports errors that retrying will not fix.
func isPermanent(err error) bool {
	for _, target := range []error{
		errTemplateMissing,
		service.ErrAzureNotConfigured,
		service.ErrAzureSecretRequired,
		azure.ErrInvalidCredentials,
		azure.ErrTenantNotFound,
		azure.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
