package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/model"
)

type deployedSignatureStore struct {
	db db.DBTX
}

func newDeployedSignatureStore(conn db.DBTX) DeployedSignatureStore {
	return &deployedSignatureStore{db: conn}
}

// InsertBatch writes all signatures in one round trip. Re-running a
// deployment overwrites its earlier rows.
func (s *deployedSignatureStore) InsertBatch(ctx context.Context, sigs []model.DeployedSignature) error {
	if len(sigs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sig := range sigs {
		batch.Queue(`
			INSERT INTO deployed_signatures (deployment_id, directory_user_id, organization_id, html, deployed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (deployment_id, directory_user_id) DO UPDATE SET
				html = EXCLUDED.html, deployed_at = EXCLUDED.deployed_at`,
			sig.DeploymentID, sig.DirectoryUserID, sig.OrganizationID, sig.HTML, sig.DeployedAt)
	}

	results := s.db.SendBatch(ctx, batch)
	for i := range sigs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("inserting signature %d of %d: %w", i+1, len(sigs), err)
		}
	}
	return results.Close()
}

func (s *deployedSignatureStore) Latest(ctx context.Context, orgID, directoryUserID int64) (*model.DeployedSignature, error) {
	var sig model.DeployedSignature
	err := s.db.QueryRow(ctx, `
		SELECT deployment_id, directory_user_id, organization_id, html, deployed_at
		FROM deployed_signatures
		WHERE organization_id = $1 AND directory_user_id = $2
		ORDER BY deployed_at DESC
		LIMIT 1`, orgID, directoryUserID).
		Scan(&sig.DeploymentID, &sig.DirectoryUserID, &sig.OrganizationID, &sig.HTML, &sig.DeployedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &sig, nil
}
