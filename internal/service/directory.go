package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sigdesk.app/server/common/id"
	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/mapper"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/queue"
	"sigdesk.app/server/internal/store"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type SyncResult struct {
	Fetched  int       `json:"fetched"`
	Upserted int       `json:"upserted"`
	Removed  int64     `json:"removed"`
	SyncedAt time.Time `json:"synced_at"`
}

type DirectoryUserPage struct {
	Users  []model.DirectoryUser `json:"users"`
	Total  int64                 `json:"total"`
	Limit  int32                 `json:"limit"`
	Offset int32                 `json:"offset"`
}

type DirectoryService interface {
	// Sync pulls every user from the organization's tenant, upserts them and
	// removes users the tenant no longer returns.
	Sync(ctx context.Context, orgID int64) (*SyncResult, error)
	// RequestSync queues a background sync.
	RequestSync(ctx context.Context, orgID int64) error
	List(ctx context.Context, orgID int64, f store.DirectoryUserFilter) (*DirectoryUserPage, error)
	Get(ctx context.Context, orgID, id int64) (*model.DirectoryUser, error)
}

type directoryService struct {
	txRunner      TxRunner
	dirStore      store.DirectoryUserStore
	azureSettings AzureSettingsService
	producer      queue.Producer
	mapper        *mapper.DirectoryUserMapper
	now           func() time.Time
}

func NewDirectoryService(
	txRunner TxRunner,
	dirStore store.DirectoryUserStore,
	azureSettings AzureSettingsService,
	producer queue.Producer,
) DirectoryService {
	return &directoryService{
		txRunner:      txRunner,
		dirStore:      dirStore,
		azureSettings: azureSettings,
		producer:      producer,
		mapper:        mapper.NewDirectoryUserMapper(),
		now:           time.Now,
	}
}

func (s *directoryService) Sync(ctx context.Context, orgID int64) (*SyncResult, error) {
	dir, err := s.azureSettings.Directory(ctx, orgID)
	if err != nil {
		return nil, err
	}

	startedAt := s.now().UTC()
	users, err := dir.ListUsers(ctx, azure.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing azure users: %w", err)
	}
	mapped := s.mapper.MapAll(orgID, users)

	result := &SyncResult{Fetched: len(users), SyncedAt: startedAt}
	err = s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		for _, u := range mapped {
			u.ID = id.New()
			if err := sp.DirectoryUsers().Upsert(ctx, u); err != nil {
				return fmt.Errorf("upserting directory user %s: %w", u.AzureObjectID, err)
			}
		}
		result.Upserted = len(mapped)

		// An empty listing is more likely a permissions problem than an
		// empty tenant, so keep what we have.
		if len(mapped) > 0 {
			removed, err := sp.DirectoryUsers().DeleteStale(ctx, orgID, startedAt)
			if err != nil {
				return fmt.Errorf("removing stale directory users: %w", err)
			}
			result.Removed = removed
		}

		if err := sp.AzureSettings().MarkSynced(ctx, orgID, startedAt); err != nil {
			return fmt.Errorf("recording sync: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "directory synced",
		"fetched", result.Fetched,
		"upserted", result.Upserted,
		"removed", result.Removed)
	if len(mapped) == 0 {
		slog.WarnContext(ctx, "directory sync returned no users; existing users kept")
	}

	return result, nil
}

func (s *directoryService) RequestSync(ctx context.Context, orgID int64) error {
	if _, err := s.azureSettings.Get(ctx, orgID); err != nil {
		return err
	}
	if err := s.producer.Enqueue(ctx, queue.Task{
		TaskType:       queue.TaskTypeDirectorySync,
		OrganizationID: orgID,
	}); err != nil {
		return fmt.Errorf("queueing directory sync: %w", err)
	}
	return nil
}

func (s *directoryService) List(ctx context.Context, orgID int64, f store.DirectoryUserFilter) (*DirectoryUserPage, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)

	users, err := s.dirStore.List(ctx, orgID, f)
	if err != nil {
		return nil, fmt.Errorf("listing directory users: %w", err)
	}
	total, err := s.dirStore.Count(ctx, orgID, f)
	if err != nil {
		return nil, fmt.Errorf("counting directory users: %w", err)
	}
	if users == nil {
		users = []model.DirectoryUser{}
	}

	return &DirectoryUserPage{Users: users, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *directoryService) Get(ctx context.Context, orgID, id int64) (*model.DirectoryUser, error) {
	u, err := s.dirStore.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDirectoryUserNotFound
		}
		return nil, fmt.Errorf("getting directory user: %w", err)
	}
	return u, nil
}

func clampPage(limit, offset int32) (int32, int32) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
