package payment

import (
	"time"

	"github.com/rifei/backend/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations of the payment layer: mirroring
// gateway state onto intents and deduplicating webhook deliveries.
type Repository interface {
	GetIntent(intentID string) (*models.PaymentIntent, error)
	GetUser(userID uint) (*models.User, error)
	GetRaffle(raffleID uint) (*models.Raffle, error)
	AttachPixCharge(intentID string, charge *PixCharge) error
	AttachPreferenceCharge(intentID string, charge *PreferenceCharge) error
	MirrorGatewayStatus(intentID string, info *PaymentInfo) error
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetIntent(intentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.First(&intent, "id = ?", intentID).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetRaffle(raffleID uint) (*models.Raffle, error) {
	var raffle models.Raffle
	if err := r.db.First(&raffle, raffleID).Error; err != nil {
		return nil, err
	}
	return &raffle, nil
}

func (r *gormRepository) AttachPixCharge(intentID string, charge *PixCharge) error {
	return r.db.Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Updates(map[string]interface{}{
			"method":             models.PaymentMethodPix,
			"mp_payment_id":      charge.PaymentID,
			"pix_qr_code":        charge.QRCode,
			"pix_qr_code_base64": charge.QRCodeBase64,
		}).Error
}

func (r *gormRepository) AttachPreferenceCharge(intentID string, charge *PreferenceCharge) error {
	return r.db.Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Updates(map[string]interface{}{
			"method":           models.PaymentMethodCheckout,
			"mp_preference_id": charge.PreferenceID,
			"checkout_url":     charge.InitPoint,
		}).Error
}

// MirrorGatewayStatus copies the gateway's raw status fields onto the
// intent without touching the internal status column. The internal status
// only ever changes through inventory.Finalize.
func (r *gormRepository) MirrorGatewayStatus(intentID string, info *PaymentInfo) error {
	return r.db.Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Updates(map[string]interface{}{
			"mp_payment_id":    info.ID,
			"mp_status":        info.Status,
			"mp_status_detail": info.StatusDetail,
		}).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// MarkWebhookProcessed stamps a successfully handled event. A failure only
// records the error and leaves processed_at NULL, so the gateway's
// redelivery of the same event id is reprocessed instead of deduplicated.
func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	updates := map[string]interface{}{
		"processing_error": processingError,
	}
	if processingError == "" {
		now := time.Now()
		updates["processed_at"] = &now
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
