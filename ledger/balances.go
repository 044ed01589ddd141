// Package ledger holds account balances and the account-level operations
// (mint, balance queries, public key registration). Balances is the
// transaction-scoped get/credit/debit surface every state machine moves funds
// through.
package ledger

import (
	"math"

	errorsmod "cosmossdk.io/errors"

	"bridge-project/models"
	"bridge-project/repository"
)

// Balances moves funds inside a single repository transaction.
type Balances struct {
	repo *repository.Repository
}

func NewBalances(repo *repository.Repository) *Balances {
	return &Balances{repo: repo}
}

// Get returns the balance of account; an account never credited holds zero.
func (b *Balances) Get(account string) (uint64, error) {
	balance, _, err := b.repo.Balance(account)
	return balance, err
}

func (b *Balances) Credit(account string, amount uint64) error {
	current, err := b.Get(account)
	if err != nil {
		return err
	}
	if current > math.MaxUint64-amount {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "crediting %d to %s overflows balance %d", amount, account, current)
	}
	return b.repo.PutBalance(account, current+amount)
}

func (b *Balances) Debit(account string, amount uint64) error {
	current, err := b.Get(account)
	if err != nil {
		return err
	}
	if current < amount {
		return errorsmod.Wrapf(models.ErrInsufficientBalance, "account %s balance %d is less than %d", account, current, amount)
	}
	return b.repo.PutBalance(account, current-amount)
}

// Transfer debits from and credits to in one step.
func (b *Balances) Transfer(from, to string, amount uint64) error {
	if err := b.Debit(from, amount); err != nil {
		return err
	}
	return b.Credit(to, amount)
}
