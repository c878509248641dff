package postgres

import (
	"context"
	"fmt"

	"isuride/internal/domain/user"
	"isuride/internal/ports"
)

// PaymentTokenRepo keeps one gateway token per rider.
type PaymentTokenRepo struct{}

func NewPaymentTokenRepo() ports.PaymentTokenRepository {
	return &PaymentTokenRepo{}
}

// Upsert replaces the rider's active token.
func (repo *PaymentTokenRepo) Upsert(ctx context.Context, t *user.PaymentToken) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO payment_tokens (user_id, token) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, created_at = clock_timestamp()
		RETURNING created_at
	`, t.UserID, t.Token).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment token: %w", err)
	}
	return nil
}

func (repo *PaymentTokenRepo) GetByUser(ctx context.Context, userID string) (*user.PaymentToken, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out user.PaymentToken
	err = tx.QueryRow(ctx, `
		SELECT user_id, token, created_at FROM payment_tokens WHERE user_id = $1
	`, userID).Scan(&out.UserID, &out.Token, &out.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}
