package repomanager

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/refreshtokens"
)

// journal records compensating actions for writes made outside a SQL
// transaction.
type journal struct {
	undo []func(ctx context.Context) error
}

func (j *journal) push(fn func(ctx context.Context) error) {
	j.undo = append(j.undo, fn)
}

// rollback replays the undo actions in reverse order. It runs detached from
// ctx cancellation.
func (j *journal) rollback(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	j.undo = nil
	return errors.Join(errs...)
}

// journaledTokens wraps a refresh-token repository and records how to undo
// Create, Consume and Delete. Bulk deletes of expired rows are not undone.
type journaledTokens struct {
	refreshtokens.Repository
	j *journal
}

func (r *journaledTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	if err := r.Repository.Create(ctx, token); err != nil {
		return err
	}
	hash := token.Token
	r.j.push(func(ctx context.Context) error {
		if err := r.Repository.Delete(ctx, hash); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return nil
	})
	return nil
}

func (r *journaledTokens) Consume(ctx context.Context, hash string) (*models.RefreshToken, error) {
	row, err := r.Repository.Consume(ctx, hash)
	if err != nil {
		return nil, err
	}
	r.restoreLater(*row)
	return row, nil
}

func (r *journaledTokens) Delete(ctx context.Context, hash string) error {
	row, err := r.Repository.FindByHash(ctx, hash)
	if err != nil {
		return err
	}
	if err := r.Repository.Delete(ctx, hash); err != nil {
		return err
	}
	r.restoreLater(*row)
	return nil
}

func (r *journaledTokens) restoreLater(row models.RefreshToken) {
	r.j.push(func(ctx context.Context) error {
		if err := r.Repository.Create(ctx, &row); err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
			return err
		}
		return nil
	})
}
