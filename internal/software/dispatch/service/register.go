package service

import (
	"context"
	"errors"
	"strings"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/chair"
	"isuride/internal/domain/owner"
	"isuride/internal/domain/user"
	"isuride/internal/ports"
)

// RegisterUser creates a rider, grants the signup coupon and redeems the
// optional invitation code, all in one transaction.
func (service *dispatchService) RegisterUser(ctx context.Context, in ports.RegisterUserInput) (ports.RegisterUserResult, error) {
	u, err := user.NewUser(service.newID(), in.Username, in.Firstname, in.Lastname, in.DateOfBirth, secureRandomHex(15))
	if err != nil {
		return ports.RegisterUserResult{}, apperr.Validation(err.Error())
	}
	invitation := strings.TrimSpace(in.InvitationCode)

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := service.userRepo.Create(txCtx, u); err != nil {
			return err
		}

		// every new rider gets the signup coupon
		if err := service.coupons.GrantSignup(txCtx, u.ID); err != nil {
			return err
		}

		if invitation == "" {
			return nil
		}
		return service.coupons.RedeemInvitation(txCtx, u.ID, invitation)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			service.logger.Error(ctx, "user_register_failed", "Failed to register rider", err, map[string]any{
				"username":        u.Username,
				"invitation_code": invitation,
			})
		}
		return ports.RegisterUserResult{}, err
	}

	service.logger.Info(ctx, "user_registered", "Rider registered", map[string]any{
		"user_id": u.ID,
		"invited": invitation != "",
	})
	return ports.RegisterUserResult{ID: u.ID, InvitationCode: u.InvitationCode}, nil
}

// RegisterPaymentMethod replaces the rider's active gateway token.
func (service *dispatchService) RegisterPaymentMethod(ctx context.Context, in ports.RegisterPaymentMethodInput) error {
	token, err := user.NewPaymentToken(in.UserID, in.Token)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.tokenRepo.Upsert(txCtx, token)
	})
	if err != nil {
		service.logger.Error(ctx, "payment_method_failed", "Failed to register payment token", err, map[string]any{
			"user_id": in.UserID,
		})
		return err
	}
	return nil
}

// RegisterOwner creates an owner with a fresh chair register token.
func (service *dispatchService) RegisterOwner(ctx context.Context, name string) (ports.RegisterOwnerResult, error) {
	o, err := owner.NewOwner(service.newID(), name, secureRandomHex(32))
	if err != nil {
		return ports.RegisterOwnerResult{}, apperr.Validation(err.Error())
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.ownerRepo.Create(txCtx, o)
	})
	if err != nil {
		service.logger.Error(ctx, "owner_register_failed", "Failed to register owner", err, map[string]any{
			"name": o.Name,
		})
		return ports.RegisterOwnerResult{}, err
	}

	service.logger.Info(ctx, "owner_registered", "Owner registered", map[string]any{"owner_id": o.ID})
	return ports.RegisterOwnerResult{ID: o.ID, ChairRegisterToken: o.ChairRegisterToken}, nil
}

// RegisterChair creates an inactive chair under the owner holding the register token.
func (service *dispatchService) RegisterChair(ctx context.Context, in ports.RegisterChairInput) (ports.RegisterChairResult, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Model) == "" || strings.TrimSpace(in.ChairRegisterToken) == "" {
		return ports.RegisterChairResult{}, apperr.Validation(chair.ErrMissingFields.Error())
	}

	var out ports.RegisterChairResult
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		o, err := service.ownerRepo.GetByChairRegisterToken(txCtx, in.ChairRegisterToken)
		if errors.Is(err, ports.ErrNotFound) {
			return apperr.Unauthorized("invalid chair_register_token")
		}
		if err != nil {
			return err
		}

		c, err := chair.NewChair(service.newID(), o.ID, in.Name, in.Model)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		if err := service.chairRepo.Create(txCtx, c); err != nil {
			return err
		}

		out = ports.RegisterChairResult{ID: c.ID, OwnerID: o.ID}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			service.logger.Error(ctx, "chair_register_failed", "Failed to register chair", err, nil)
		}
		return ports.RegisterChairResult{}, err
	}

	service.logger.Info(ctx, "chair_registered", "Chair registered", map[string]any{
		"chair_id": out.ID,
		"owner_id": out.OwnerID,
	})
	return out, nil
}
