package ledger

import (
	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"bridge-project/logger"
	"bridge-project/models"
	"bridge-project/repository"
	"bridge-project/sigs"
)

// Service exposes the account operations.
type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// Mint credits amount to the caller. Minting is unlimited; it stands in for
// token issuance, which lives outside this ledger.
func (s *Service) Mint(caller string, amount uint64) (uint64, error) {
	if caller == "" {
		return 0, errorsmod.Wrap(models.ErrUnauthorized, "mint requires a caller identity")
	}
	if amount == 0 {
		return 0, errorsmod.Wrap(models.ErrInvalidRequest, "mint amount must be a positive integer")
	}

	var updated uint64
	err := s.store.Update(func(r *repository.Repository) error {
		balances := NewBalances(r)
		if err := balances.Credit(caller, amount); err != nil {
			return err
		}
		var err error
		updated, err = balances.Get(caller)
		return err
	})
	if err != nil {
		return 0, err
	}

	logger.Logger.Info("Minted tokens", zap.String("account", caller), zap.Uint64("amount", amount), zap.Uint64("balance", updated))
	return updated, nil
}

// Balance returns the balance of any account, zero when never credited.
func (s *Service) Balance(account string) (uint64, error) {
	var balance uint64
	err := s.store.View(func(r *repository.Repository) error {
		var err error
		balance, err = NewBalances(r).Get(account)
		return err
	})
	return balance, err
}

// ClientBalance returns the caller's balance; NotFound if the account does not exist yet.
func (s *Service) ClientBalance(caller string) (uint64, error) {
	var balance uint64
	err := s.store.View(func(r *repository.Repository) error {
		b, found, err := r.Balance(caller)
		if err != nil {
			return err
		}
		if !found {
			return errorsmod.Wrapf(models.ErrNotFound, "the client %s balance does not exist", caller)
		}
		balance = b
		return nil
	})
	return balance, err
}

// SetPublicKey registers the signing key of account. Only the account itself may set it.
func (s *Service) SetPublicKey(caller, account, publicKeyHex string) error {
	if caller == "" || caller != account {
		return errorsmod.Wrapf(models.ErrUnauthorized, "client %q cannot set the public key of %s", caller, account)
	}
	if _, err := sigs.ParsePublicKey(publicKeyHex); err != nil {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "public key of %s: %v", account, err)
	}

	err := s.store.Update(func(r *repository.Repository) error {
		return r.PutPublicKey(account, publicKeyHex)
	})
	if err != nil {
		return err
	}

	logger.Logger.Info("Registered public key", zap.String("account", account))
	return nil
}

// PublicKey returns the registered key of account.
func (s *Service) PublicKey(account string) (string, error) {
	var key string
	err := s.store.View(func(r *repository.Repository) error {
		var err error
		key, err = r.PublicKey(account)
		return err
	})
	return key, err
}
