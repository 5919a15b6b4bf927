package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"gorm.io/gorm"
)

// ActorState is what clients render. The server copy is authoritative;
// clients replace their optimistic state with it after every mutation.
type ActorState struct {
	ActorID      string       `json:"actor_id"`
	Points       int64        `json:"points"`
	Badge        string       `json:"badge"`
	Tier         TierProgress `json:"tier"`
	NFTClaimed   bool         `json:"nft_claimed"`
	NFTAwardedAt *time.Time   `json:"nft_awarded_at,omitempty"`
	EthAddress   *string      `json:"eth_address,omitempty"`
	LastActive   time.Time    `json:"last_active"`
}

func newActorState(a *models.GamificationActor) ActorState {
	tier := TierProgressFor(a.Points)
	return ActorState{
		ActorID:      a.ID,
		Points:       a.Points,
		Badge:        tier.Current.Name,
		Tier:         tier,
		NFTClaimed:   a.NFTClaimed,
		NFTAwardedAt: a.NFTAwardedAt,
		EthAddress:   a.EthAddress,
		LastActive:   a.LastActive,
	}
}

// NFTAward reports whether this call flipped the flag.
type NFTAward struct {
	Awarded bool       `json:"awarded"` // false when the actor already had it
	State   ActorState `json:"state"`
}

var ethAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ActorService exposes the per-actor reads and the actor-level mutations
// that are not earning actions.
type ActorService struct {
	DB     *gorm.DB
	Config *ConfigStore
	Ledger *PointLedger
	Now    func() time.Time
}

func NewActorService(db *gorm.DB, config *ConfigStore, ledger *PointLedger) *ActorService {
	return &ActorService{DB: db, Config: config, Ledger: ledger, Now: time.Now}
}

// GetState returns points, badge and NFT status, provisioning new actors.
func (s *ActorService) GetState(ctx context.Context, actorID string) (ActorState, error) {
	actor, err := s.Ledger.GetActor(ctx, actorID)
	if err != nil {
		return ActorState{}, err
	}
	return newActorState(actor), nil
}

// AwardNft sets the one-time NFT milestone. It only writes when nft_claimed
// is still false, so repeated calls keep the first nft_awarded_at.
func (s *ActorService) AwardNft(ctx context.Context, actorID string) (NFTAward, error) {
	if err := validActorID(actorID); err != nil {
		return NFTAward{}, err
	}
	settings := s.Config.Settings()

	now := s.Now().UTC()
	var (
		actor   models.GamificationActor
		awarded bool
	)
	err := runInTx(ctx, s.DB, "actor.award_nft", func(tx *gorm.DB) error {
		if err := ensureActor(tx, actorID, now); err != nil {
			return err
		}
		if err := tx.Where("id = ?", actorID).First(&actor).Error; err != nil {
			return err
		}
		if actor.NFTClaimed {
			return nil
		}
		if !settings.NFTExchangeActive {
			return ErrNFTExchangeInactive
		}
		if settings.RequireEthAddress && (actor.EthAddress == nil || *actor.EthAddress == "") {
			return ErrEthAddressRequired
		}

		res := tx.Model(&models.GamificationActor{}).
			Where("id = ? AND nft_claimed = ?", actorID, false).
			Updates(map[string]interface{}{
				"nft_claimed":    true,
				"nft_awarded_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		awarded = res.RowsAffected == 1
		return tx.Where("id = ?", actorID).First(&actor).Error
	})
	if err != nil {
		return NFTAward{}, err
	}

	if awarded {
		metricNFTAwards.Inc()
		utils.LogInfo("🖼️ NFT awarded to %s", actorID)
	}
	return NFTAward{Awarded: awarded, State: newActorState(&actor)}, nil
}

// SetEthAddress registers the wallet the NFT is sent to.
func (s *ActorService) SetEthAddress(ctx context.Context, actorID, address string) (ActorState, error) {
	if err := validActorID(actorID); err != nil {
		return ActorState{}, err
	}
	address = strings.TrimSpace(address)
	if !ethAddressPattern.MatchString(address) {
		return ActorState{}, ErrInvalidEthAddress
	}

	now := s.Now().UTC()
	var actor models.GamificationActor
	err := runInTx(ctx, s.DB, "actor.set_eth_address", func(tx *gorm.DB) error {
		if err := ensureActor(tx, actorID, now); err != nil {
			return err
		}
		if err := tx.Model(&models.GamificationActor{}).
			Where("id = ?", actorID).
			Update("eth_address", address).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", actorID).First(&actor).Error
	})
	if err != nil {
		return ActorState{}, err
	}
	return newActorState(&actor), nil
}

// AdjustPoints is the admin correction path: positive amounts credit
// (capped), negative amounts debit (floored at zero).
func (s *ActorService) AdjustPoints(ctx context.Context, actorID string, amount int64, note string) (CreditResult, error) {
	if err := validActorID(actorID); err != nil {
		return CreditResult{}, err
	}
	switch {
	case amount > 0:
		return s.Ledger.Credit(ctx, actorID, amount, models.ReasonAdjustment, note)
	case amount < 0:
		return s.Ledger.Debit(ctx, actorID, -amount, models.ReasonAdjustment, note)
	}
	return CreditResult{}, ErrInvalidAmount
}
