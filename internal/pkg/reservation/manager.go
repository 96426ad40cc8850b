package reservation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/env"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/notify"
	"github.com/rifei/backend/internal/pkg/payment"
)

// sweepBatchSize bounds how many expired intents one sweep pass handles.
const sweepBatchSize = 200

// Reconciler is the slice of the payment reconciler the sweep needs to
// double-check charges before releasing their numbers.
type Reconciler interface {
	ReconcileIntent(ctx context.Context, intent *models.PaymentIntent) (*payment.ReconcileResult, error)
}

// Manager runs the expiry sweep: expired pending reservations get their
// charge state checked one last time, then their numbers are released.
type Manager struct {
	inventory  *inventory.Service
	reconciler Reconciler
	notifier   notify.Notifier

	sweepTicker *time.Ticker
	interval    time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

// NewManager creates a sweep manager. A zero interval falls back to the
// RESERVATION_SWEEP_SECONDS setting.
func NewManager(inv *inventory.Service, reconciler Reconciler, notifier notify.Notifier, interval time.Duration) *Manager {
	if interval <= 0 {
		seconds, err := strconv.Atoi(env.GetEnv("RESERVATION_SWEEP_SECONDS", "60"))
		if err != nil || seconds <= 0 {
			seconds = 60
		}
		interval = time.Duration(seconds) * time.Second
	}
	return &Manager{
		inventory:  inv,
		reconciler: reconciler,
		notifier:   notifier,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the background sweep worker.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Infof("[Reservation Manager] Starting expiry sweep (interval: %s)", m.interval)

	m.sweepTicker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.sweepWorker()
}

// Stop stops the background sweep worker and waits for it to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Reservation Manager] Stopping expiry sweep...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[Reservation Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) sweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Reservation Manager] Sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			if err := m.SweepOnce(context.Background()); err != nil {
				log.Errorf("[Reservation Manager] Sweep error: %v", err)
			}
		}
	}
}

// SweepOnce processes every currently expired pending reservation. An
// intent that already carries a gateway charge gets one live status check
// first, so a payment settled in the final seconds of its hold still wins
// over the expiry. Charges the gateway still reports as pending keep
// their hold, and gateway outages leave the intent for the next pass
// rather than releasing numbers that may already be paid.
func (m *Manager) SweepOnce(ctx context.Context) error {
	expired, err := m.inventory.ExpiredPendingIntents(time.Now(), sweepBatchSize)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	log.Infof("[Reservation Manager] Sweeping %d expired reservations", len(expired))
	for i := range expired {
		intent := &expired[i]
		if err := m.sweepIntent(ctx, intent); err != nil {
			log.Errorf("[Reservation Manager] Failed to sweep intent %s: %v", intent.ID, err)
		}
	}
	return nil
}

func (m *Manager) sweepIntent(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.GatewayPaymentID() != "" && m.reconciler != nil {
		result, err := m.reconciler.ReconcileIntent(ctx, intent)
		if err != nil {
			if errors.Is(err, payment.ErrGatewayUnavailable) {
				log.Warnf("[Reservation Manager] Gateway unavailable, postponing intent %s", intent.ID)
				return nil
			}
			return err
		}
		if result.Applied {
			// The last-second check settled the intent, sold or released.
			return nil
		}
		if !result.Ignored && result.Class == payment.StatusPending {
			// The charge is still settling at the gateway. Keep the hold
			// so a late approval cannot land on a released intent.
			log.Infof("[Reservation Manager] Charge for intent %s still pending at gateway, postponing", intent.ID)
			return nil
		}
	}

	result, err := m.inventory.Finalize(intent.ID, inventory.OutcomeReleased)
	if err != nil {
		return err
	}
	if result.Applied && m.notifier != nil {
		m.notifier.Notify(intent.UserID, models.NotificationKindHoldExpired,
			"⏰ Reserva expirada",
			"Sua reserva expirou e os números foram liberados.",
			intent.RaffleID)
	}
	return nil
}
