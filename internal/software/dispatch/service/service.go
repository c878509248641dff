// Package service implements the rider, chair and owner operations of the dispatch API.
package service

import (
	"isuride/internal/general/logger"
	"isuride/internal/ports"
	"isuride/internal/software/coupons"
	"isuride/internal/software/fare"
	"isuride/internal/software/ledger"
	"isuride/internal/software/settlement"
)

// Deps carries every collaborator of the dispatch services. Publisher,
// Locations stream and cache are optional.
type Deps struct {
	Logger *logger.Logger
	UoW    ports.UnitOfWork

	Users     ports.UserRepository
	Tokens    ports.PaymentTokenRepository
	Owners    ports.OwnerRepository
	Chairs    ports.ChairRepository
	Locations ports.ChairLocationRepository
	Rides     ports.RideRepository
	Statuses  ports.RideStatusRepository

	Ledger  *ledger.Ledger
	Coupons *coupons.Ledger
	Fare    fare.Calculator
	Settler *settlement.Settler

	Publisher      ports.StatusPublisher
	LocationStream ports.LocationPublisher
	LocationCache  ports.LocationCache
}

// dispatchService backs RiderService, ChairService and OwnerService.
type dispatchService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork

	userRepo     ports.UserRepository
	tokenRepo    ports.PaymentTokenRepository
	ownerRepo    ports.OwnerRepository
	chairRepo    ports.ChairRepository
	locationRepo ports.ChairLocationRepository
	rideRepo     ports.RideRepository
	statusRepo   ports.RideStatusRepository

	ledger   *ledger.Ledger
	coupons  *coupons.Ledger
	fare     fare.Calculator
	settler  *settlement.Settler
	pub      ports.StatusPublisher
	stream   ports.LocationPublisher
	locCache ports.LocationCache

	newID func() string
}

func newDispatchService(d Deps) *dispatchService {
	return &dispatchService{
		logger:       d.Logger,
		uow:          d.UoW,
		userRepo:     d.Users,
		tokenRepo:    d.Tokens,
		ownerRepo:    d.Owners,
		chairRepo:    d.Chairs,
		locationRepo: d.Locations,
		rideRepo:     d.Rides,
		statusRepo:   d.Statuses,
		ledger:       d.Ledger,
		coupons:      d.Coupons,
		fare:         d.Fare,
		settler:      d.Settler,
		pub:          d.Publisher,
		stream:       d.LocationStream,
		locCache:     d.LocationCache,
		newID:        newID,
	}
}

// NewRiderService creates the rider-facing service.
func NewRiderService(d Deps) ports.RiderService { return newDispatchService(d) }

// NewChairService creates the chair-facing service.
func NewChairService(d Deps) ports.ChairService { return newDispatchService(d) }

// NewOwnerService creates the owner-facing service.
func NewOwnerService(d Deps) ports.OwnerService { return newDispatchService(d) }
