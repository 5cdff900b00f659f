package account

import (
	"context"
	"fmt"
	"strings"

	"go-adrules/internal/metaapi"

	"go.uber.org/zap"
)

type AccountService interface {
	Link(ctx context.Context, a *AdAccount) error
	Get(ctx context.Context, id string) (*AdAccount, error)
	List(ctx context.Context) ([]AdAccount, error)
	Update(ctx context.Context, id string, a *AdAccount) error
	Unlink(ctx context.Context, id string) error
}

type AccountServiceImpl struct {
	repo   AccountRepository
	client *metaapi.Client
	log    *zap.Logger
}

func NewAccountService(repo AccountRepository, client *metaapi.Client, log *zap.Logger) AccountService {
	return &AccountServiceImpl{
		repo:   repo,
		client: client,
		log:    log,
	}
}

func validateAccount(a *AdAccount) error {
	if a.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	if a.Token == "" {
		return fmt.Errorf("access token is required")
	}
	if a.Name == "" {
		a.Name = a.AccountID
	}
	if !strings.HasPrefix(a.AccountID, "act_") {
		a.AccountID = "act_" + a.AccountID
	}
	return nil
}

// Link stores a new ad account after checking the token actually works
// against the account. A dead token fails fast here instead of silently
// failing every rule run later.
func (s *AccountServiceImpl) Link(ctx context.Context, a *AdAccount) error {
	if err := validateAccount(a); err != nil {
		return err
	}

	existing, err := s.repo.GetByAccountID(ctx, a.AccountID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("account %s is already linked", a.AccountID)
	}

	if _, err := s.client.GetCampaigns(ctx, a.AccountID, a.Token); err != nil {
		return fmt.Errorf("token check failed for %s: %w", a.AccountID, err)
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}

	s.log.Info("Ad account linked",
		zap.String("account_id", a.AccountID),
		zap.String("name", a.Name))

	return nil
}

func (s *AccountServiceImpl) Get(ctx context.Context, id string) (*AdAccount, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AccountServiceImpl) List(ctx context.Context) ([]AdAccount, error) {
	return s.repo.List(ctx)
}

func (s *AccountServiceImpl) Update(ctx context.Context, id string, a *AdAccount) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("account not found")
	}

	if a.Name != "" {
		existing.Name = a.Name
	}
	if a.Token != "" {
		if _, err := s.client.GetCampaigns(ctx, existing.AccountID, a.Token); err != nil {
			return fmt.Errorf("token check failed for %s: %w", existing.AccountID, err)
		}
		existing.Token = a.Token
	}

	return s.repo.Update(ctx, existing)
}

// Unlink removes the linked account. Rules keep their snapshotted tokens,
// so existing rules keep running until they are edited.
func (s *AccountServiceImpl) Unlink(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("Ad account unlinked", zap.String("id", id))
	return nil
}
