package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	paymentModel "sokoni-backend/internal/domains/payment/model"
	"sokoni-backend/internal/domains/wallet/model"
	repo "sokoni-backend/internal/domains/wallet/repository"
	"sokoni-backend/pkg/logger"
)

// =====================================================
// WALLET SERVICE INTERFACE
// =====================================================
type WalletService interface {
	// StartDeposit creates a pending deposit. The caller then initiates
	// an STK push against the returned transaction ID.
	StartDeposit(ctx context.Context, userID uuid.UUID, req model.StartDepositRequest) (*model.StartDepositResponse, error)

	// GetBalance returns the user's wallet balance
	GetBalance(ctx context.Context, userID uuid.UUID) (*model.BalanceResponse, error)

	// ListTransactions lists the user's wallet transactions
	ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.WalletTransaction, int, error)
}

// =====================================================
// WALLET SERVICE IMPLEMENTATION
// =====================================================
type walletService struct {
	walletRepo repo.WalletRepoInterface
}

func NewWalletService(walletRepo repo.WalletRepoInterface) WalletService {
	return &walletService{walletRepo: walletRepo}
}

func (s *walletService) StartDeposit(ctx context.Context, userID uuid.UUID, req model.StartDepositRequest) (*model.StartDepositResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewWalletError(model.ErrCodeInvalidAmount, "Invalid deposit amount", err)
	}

	txn := &model.WalletTransaction{
		ID:     uuid.New(),
		UserID: userID,
		Type:   model.TransactionTypeDeposit,
		Amount: req.Amount,
		Status: model.TransactionStatusPending,
	}

	if err := s.walletRepo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	return &model.StartDepositResponse{
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		Status:        txn.Status,
	}, nil
}

func (s *walletService) GetBalance(ctx context.Context, userID uuid.UUID) (*model.BalanceResponse, error) {
	wallet, err := s.walletRepo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.BalanceResponse{
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
	}, nil
}

func (s *walletService) ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.WalletTransaction, int, error) {
	return s.walletRepo.ListTransactions(ctx, userID, page, limit)
}

// =====================================================
// PAYMENT SETTLEMENT HOOK
// =====================================================
// DepositHook receives settlement results for wallet-deposit intents.
// The repository's conditional transition keeps the credit at most
// once even if settlement and a replayed webhook both report success.

type DepositHook struct {
	walletRepo repo.WalletRepoInterface
}

func NewDepositHook(walletRepo repo.WalletRepoInterface) *DepositHook {
	return &DepositHook{walletRepo: walletRepo}
}

// ResolveReference admits a deposit transaction into the payment flow.
// The transaction must be the user's own pending deposit; the amount
// owed is whatever StartDeposit recorded, not what the client sends.
func (h *DepositHook) ResolveReference(ctx context.Context, userID, transactionID uuid.UUID) (decimal.Decimal, error) {
	txn, err := h.walletRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, model.ErrTransactionNotFound) {
			return decimal.Zero, paymentModel.NewInvalidReferenceError("deposit " + transactionID.String() + " not found")
		}
		return decimal.Zero, err
	}
	if txn.UserID != userID {
		return decimal.Zero, paymentModel.NewInvalidReferenceError("deposit " + transactionID.String() + " not found")
	}
	if txn.Type != model.TransactionTypeDeposit || txn.Status != model.TransactionStatusPending {
		return decimal.Zero, paymentModel.NewInvalidReferenceError("deposit " + transactionID.String() + " is not awaiting payment")
	}
	return txn.Amount, nil
}

func (h *DepositHook) OnPaymentSuccess(ctx context.Context, intent *paymentModel.PaymentIntent) error {
	applied, err := h.walletRepo.CompleteDeposit(ctx, intent.ReferenceID, intent.ID)
	if err != nil {
		return err
	}
	if applied {
		logger.Info("wallet deposit credited", map[string]interface{}{
			"transaction_id": intent.ReferenceID.String(),
			"intent_id":      intent.ID.String(),
			"amount":         intent.Amount.String(),
		})
	}
	return nil
}

func (h *DepositHook) OnPaymentFailure(ctx context.Context, intent *paymentModel.PaymentIntent, reason string) error {
	applied, err := h.walletRepo.FailDeposit(ctx, intent.ReferenceID, reason)
	if err != nil {
		return err
	}
	if applied {
		logger.Info("wallet deposit failed", map[string]interface{}{
			"transaction_id": intent.ReferenceID.String(),
			"reason":         reason,
		})
	}
	return nil
}
